package contracts

import (
	"strings"
	"time"
)

// Category identifies one of the four fixed ranking categories
// ⭐ SSOT: カテゴリキーの定義はここだけ
type Category string

const (
	CategoryRegularUp   Category = "regular_up"   // 本則市場 値上がり率
	CategoryRegularDown Category = "regular_down" // 本則市場 値下がり率
	CategoryPTSUp       Category = "pts_up"       // PTS夜間 値上がり率
	CategoryPTSDown     Category = "pts_down"     // PTS夜間 値下がり率
)

// Categories returns all category keys in report section order
func Categories() []Category {
	return []Category{
		CategoryRegularUp,
		CategoryRegularDown,
		CategoryPTSUp,
		CategoryPTSDown,
	}
}

// IsValid reports whether c is one of the four known categories
func (c Category) IsValid() bool {
	switch c {
	case CategoryRegularUp, CategoryRegularDown, CategoryPTSUp, CategoryPTSDown:
		return true
	}
	return false
}

// Market returns the market label for the category ("PTS" or "Regular")
func (c Category) Market() string {
	if strings.Contains(string(c), "pts") {
		return "PTS"
	}
	return "Regular"
}

// IsGainer reports whether the category ranks rising stocks
func (c Category) IsGainer() bool {
	return c == CategoryRegularUp || c == CategoryPTSUp
}

// StockRecord is one row of a scraped ranking table.
// Immutable once returned by the scraper; analysis enrichment happens on
// AnalyzedStock, never in place.
type StockRecord struct {
	Rank          int      `json:"rank"`           // 1-based, contiguous within one scrape
	Code          string   `json:"code"`           // exactly 4 ASCII digits
	Name          string   `json:"name"`           // non-empty display name
	ChangePercent float64  `json:"change_percent"` // signed, full precision
	IsStopLimit   bool     `json:"is_stop_limit"`  // row contained an S高/S安 marker
	CurrentPrice  *float64 `json:"current_price"`  // nil when the page shows a placeholder
	SourceURL     string   `json:"source_url"`     // originating ranking page
}

// AnalysisResult is the output of the analysis collaborator for one stock
type AnalysisResult struct {
	AnalysisText string   `json:"analysis_text"`
	SourceURLs   []string `json:"source_urls"`
}

// AnalyzedStock pairs a scraped record with its analysis
type AnalyzedStock struct {
	StockRecord
	AnalysisText string   `json:"analysis_text"`
	SourceURLs   []string `json:"source_urls"`
}

// StopLimitStock is one entry of the stop-high/low warning block
type StopLimitStock struct {
	Name    string  `json:"name"`
	Code    string  `json:"code"`
	Change  float64 `json:"change"`
	Market  string  `json:"market"` // "PTS" or "Regular"
}

// Report is one day's assembled digest
type Report struct {
	ID         int64                        `json:"id,omitempty"`
	ReportDate time.Time                    `json:"report_date"`
	Sections   map[Category][]AnalyzedStock `json:"sections"`
	Warning    string                       `json:"warning,omitempty"` // stop-limit warning block, empty when below threshold
	Document   string                       `json:"document"`          // rendered plain-text report
	CreatedAt  time.Time                    `json:"created_at"`
}

// TotalStocks returns the number of analyzed stocks across all sections
func (r *Report) TotalStocks() int {
	total := 0
	for _, stocks := range r.Sections {
		total += len(stocks)
	}
	return total
}

// StopLimitCount returns the number of stop-limit stocks across all sections
func (r *Report) StopLimitCount() int {
	count := 0
	for _, stocks := range r.Sections {
		for _, s := range stocks {
			if s.IsStopLimit {
				count++
			}
		}
	}
	return count
}

// ReportSummary is a lightweight listing row for stored reports
type ReportSummary struct {
	ID         int64     `json:"id"`
	ReportDate time.Time `json:"report_date"`
	StockCount int       `json:"stock_count"`
	HasWarning bool      `json:"has_warning"`
	CreatedAt  time.Time `json:"created_at"`
}
