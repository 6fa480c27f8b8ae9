package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strings"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/pkg/config"
	"github.com/morita/kabuto/pkg/httputil"
	"github.com/morita/kabuto/pkg/logger"
)

// urlRe finds source URLs inside the generated analysis text
var urlRe = regexp.MustCompile(`https?://\S+`)

// safetySettings block harmful content at medium severity and above
var safetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

// Client calls the Gemini generateContent REST API
// ⭐ SSOT: Gemini API の呼び出しはこのクライアントでのみ行う
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	model      string
	baseURL    string
}

// NewClient creates a new Gemini API client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "gemini"),
		apiKey:     cfg.Gemini.APIKey,
		model:      cfg.Gemini.Model,
		baseURL:    cfg.Gemini.BaseURL,
	}
}

// generateContent request/response wire types

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents       []content       `json:"contents"`
	SafetySettings []safetySetting `json:"safetySettings"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback"`
}

// Analyze explains one price movement via Gemini.
// Implements contracts.StockAnalyzer: every failure mode is folded into
// the analysis text, so a broken API call degrades one report entry
// instead of aborting the digest run.
func (c *Client) Analyze(ctx context.Context, record contracts.StockRecord) contracts.AnalysisResult {
	log := c.logger.WithFields(map[string]interface{}{
		"code": record.Code,
		"name": record.Name,
	})

	if c.apiKey == "" {
		log.Error("Gemini API key is not configured")
		return contracts.AnalysisResult{AnalysisText: "分析失敗: APIキーが設定されていません"}
	}

	prompt := buildPrompt(record)
	log.WithField("change_percent", record.ChangePercent).Info("Requesting analysis")

	resp, err := c.generateContent(ctx, prompt)
	if err != nil {
		log.WithError(err).Error("Gemini API call failed")
		return contracts.AnalysisResult{
			AnalysisText: fmt.Sprintf("分析失敗 (APIエラー): %v", err),
		}
	}

	text, blocked := extractText(resp)
	if text == "" {
		if blocked != "" {
			log.WithField("block_reason", blocked).Warn("Gemini response was blocked")
			return contracts.AnalysisResult{
				AnalysisText: fmt.Sprintf("分析がブロックされました。理由: %s", blocked),
			}
		}
		log.Warn("Gemini returned no content")
		return contracts.AnalysisResult{AnalysisText: "分析結果がありませんでした。"}
	}

	log.Info("Analysis completed")
	return contracts.AnalysisResult{
		AnalysisText: text,
		SourceURLs:   extractSourceURLs(text),
	}
}

// buildPrompt renders the Japanese analysis prompt for one stock
func buildPrompt(record contracts.StockRecord) string {
	marketType := "Regular"
	if strings.Contains(record.SourceURL, "pts") {
		marketType = "PTS"
	}

	direction := "上昇"
	if record.ChangePercent <= 0 {
		direction = "下落"
	}

	stopLimitText := ""
	if record.IsStopLimit {
		stopLimitText = " (ストップ高/安)"
	}

	return fmt.Sprintf(
		"%s市場の銘柄「%s」(コード: %s)について、前営業日に株価が%.2f%% %sした%s主な要因を分析してください。"+
			"分析には、直近の適時開示情報や信頼できる主要ニュースソースを参考にしてください。"+
			"可能であれば、情報源のURLを含めてください。回答は日本語でお願いします。",
		marketType, record.Name, record.Code,
		math.Abs(record.ChangePercent), direction, stopLimitText,
	)
}

// generateContent performs one generateContent call and decodes the result
func (c *Client) generateContent(ctx context.Context, prompt string) (*generateResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	reqBody := generateRequest{
		Contents:       []content{{Parts: []part{{Text: prompt}}}},
		SafetySettings: safetySettings,
	}

	resp, err := c.httpClient.PostJSON(ctx, url, reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}

// extractText pulls the generated text out of a response. When no text
// is present it also returns the block reason, if any.
func extractText(resp *generateResponse) (text string, blockReason string) {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
	}

	if sb.Len() == 0 && resp.PromptFeedback != nil {
		return "", resp.PromptFeedback.BlockReason
	}
	return sb.String(), ""
}

// extractSourceURLs collects URLs from the analysis text, trimming
// trailing punctuation the model tends to attach
func extractSourceURLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, strings.TrimRight(m, ".,;:!?"))
	}
	return urls
}
