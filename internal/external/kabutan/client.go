package kabutan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/pkg/config"
	"github.com/morita/kabuto/pkg/httputil"
	"github.com/morita/kabuto/pkg/logger"
)

// UserAgent mimics a desktop browser; kabutan.jp rejects obvious bots
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// categoryPaths maps ranking categories to kabutan.jp warning pages
var categoryPaths = map[contracts.Category]string{
	contracts.CategoryRegularUp:   "/warning/value_increase",
	contracts.CategoryRegularDown: "/warning/value_decrease",
	contracts.CategoryPTSUp:       "/warning/pts_night_price_increase",
	contracts.CategoryPTSDown:     "/warning/pts_night_price_decrease",
}

// Client handles communication with kabutan.jp
// ⭐ SSOT: kabutan.jp へのアクセスはこのクライアントでのみ行う
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	limiter    *rate.Limiter
}

// NewClient creates a new kabutan.jp client.
// The fetch-interval limiter keeps successive page fetches at least
// cfg.Kabutan.FetchInterval apart so the site is never hammered.
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.Kabutan.FetchInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Kabutan.FetchInterval), 1)
	}

	return &Client{
		httpClient: httpClient.WithUserAgent(UserAgent),
		logger:     log.WithField("module", "kabutan"),
		baseURL:    cfg.Kabutan.BaseURL,
		limiter:    limiter,
	}
}

// RankingURL returns the full ranking page URL for a category, or "" for
// an unknown category.
func (c *Client) RankingURL(category contracts.Category) string {
	path, ok := categoryPaths[category]
	if !ok {
		return ""
	}
	return c.baseURL + path
}

// ScrapeRanking fetches and parses one ranking category.
// Implements contracts.RankingScraper: every failure is logged and
// yields an empty slice, so one broken category never aborts a digest
// run.
func (c *Client) ScrapeRanking(ctx context.Context, category contracts.Category) []contracts.StockRecord {
	url := c.RankingURL(category)
	if url == "" {
		c.logger.WithField("category", category).Warn("Unknown ranking category")
		return nil
	}

	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		c.logFetchFailure(url, err)
		return nil
	}

	records := parseRankingTable(doc, url, c.logger)

	if len(records) > 0 {
		c.logger.WithFields(map[string]interface{}{
			"category": category,
			"url":      url,
			"count":    len(records),
		}).Info("Scraped ranking page")
	} else {
		c.logger.WithFields(map[string]interface{}{
			"category": category,
			"url":      url,
		}).Warn("No stock data extracted from ranking page")
	}

	return records
}

// statusError marks a non-2xx response from kabutan.jp
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// fetchDocument GETs a ranking page and parses it into a goquery document,
// decoding the body with a detected charset (the pages are not guaranteed
// to be UTF-8).
func (c *Client) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch interval wait: %w", err)
		}
	}

	resp, err := c.httpClient.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{StatusCode: resp.StatusCode}
	}

	// Detect encoding from the Content-Type header or a meta tag,
	// falling back to UTF-8
	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("charset detection failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("HTML parse failed: %w", err)
	}

	return doc, nil
}

// logFetchFailure classifies a transport failure and logs it.
// Taxonomy: timeout / connection / HTTP status / generic request error.
func (c *Client) logFetchFailure(url string, err error) {
	log := c.logger.WithField("url", url).WithError(err)

	var stErr *statusError
	var netErr net.Error

	switch {
	case errors.As(err, &stErr):
		log.WithField("status_code", stErr.StatusCode).Error("Ranking page returned HTTP error")
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		log.Error("Ranking page request timed out")
	case isConnectionError(err):
		log.Error("Network connection error fetching ranking page")
	default:
		log.Error("Ranking page request failed")
	}
}

// isConnectionError reports whether err is a dial/connection level failure
func isConnectionError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
