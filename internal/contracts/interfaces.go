package contracts

import (
	"context"
	"time"
)

// RankingScraper fetches and parses one ranking category
// ⭐ SSOT: スクレイパーのインターフェースはここだけ
//
// Implementations recover every transport and parse failure internally:
// the worst observable result is an empty slice, never an error that
// aborts the digest run.
type RankingScraper interface {
	ScrapeRanking(ctx context.Context, category Category) []StockRecord
}

// StockAnalyzer explains one price movement
// ⭐ SSOT: 分析コラボレーターのインターフェースはここだけ
//
// Failures are folded into AnalysisText by the implementation; a digest
// run never stops because one stock could not be analyzed.
type StockAnalyzer interface {
	Analyze(ctx context.Context, record StockRecord) AnalysisResult
}

// ReportRepository persists and reads back assembled digests
type ReportRepository interface {
	Save(ctx context.Context, report *Report) error
	GetLatest(ctx context.Context) (*Report, error)
	GetByDate(ctx context.Context, date time.Time) (*Report, error)
	ListRecent(ctx context.Context, limit int) ([]ReportSummary, error)
}
