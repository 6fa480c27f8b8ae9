package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/internal/digestconfig"
	"github.com/morita/kabuto/internal/report"
	"github.com/morita/kabuto/pkg/logger"
	"github.com/morita/kabuto/pkg/redis"
)

// analysisCacheTTL keeps per-stock analyses long enough to survive a
// same-day re-run without re-billing the API
const analysisCacheTTL = 48 * time.Hour

// Deps wires the orchestrator's collaborators
type Deps struct {
	Scraper    contracts.RankingScraper
	Analyzer   contracts.StockAnalyzer
	Repository contracts.ReportRepository // nil disables persistence
	Builder    *report.Builder
	Cache      *redis.Cache // nil disables analysis caching
	Config     *digestconfig.Config
	CallDelay  time.Duration // pause between analysis API calls
	Logger     *logger.Logger
}

// Orchestrator drives one digest run: scrape the four categories,
// analyze every record, assemble the warning and the report, persist.
// ⭐ SSOT: デイリーダイジェストの実行フローはここだけ
type Orchestrator struct {
	deps   Deps
	logger *logger.Logger
}

// New creates a digest orchestrator
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		logger: deps.Logger.WithField("module", "digest"),
	}
}

// Run executes the full pipeline for one report date. Scrape and
// analysis failures degrade individual entries; only persistence
// failures and context cancellation surface as errors.
func (o *Orchestrator) Run(ctx context.Context, date time.Time) (*contracts.Report, error) {
	start := time.Now()
	dateStr := date.Format("2006-01-02")

	o.logger.WithField("report_date", dateStr).Info("Starting digest run")

	sections := make(map[contracts.Category][]contracts.AnalyzedStock)
	var stopLimitStocks []contracts.StopLimitStock

	for _, category := range contracts.Categories() {
		records := o.deps.Scraper.ScrapeRanking(ctx, category)
		if len(records) == 0 {
			o.logger.WithField("category", category).Warn("No stocks scraped, skipping analysis")
			continue
		}

		analyzed := make([]contracts.AnalyzedStock, 0, len(records))
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			result, cached := o.analyze(ctx, dateStr, category, record)
			analyzed = append(analyzed, contracts.AnalyzedStock{
				StockRecord:  record,
				AnalysisText: result.AnalysisText,
				SourceURLs:   result.SourceURLs,
			})

			if record.IsStopLimit {
				stopLimitStocks = append(stopLimitStocks, contracts.StopLimitStock{
					Name:   record.Name,
					Code:   record.Code,
					Change: record.ChangePercent,
					Market: category.Market(),
				})
			}

			// Pace the API; cache hits cost nothing
			if !cached && o.deps.CallDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(o.deps.CallDelay):
				}
			}
		}

		sections[category] = analyzed
		o.logger.WithFields(map[string]interface{}{
			"category": category,
			"count":    len(analyzed),
		}).Info("Finished category")
	}

	warning := ""
	threshold := o.deps.Config.Warning.StopLimitThreshold
	if len(stopLimitStocks) >= threshold {
		o.logger.WithFields(map[string]interface{}{
			"stop_limit_count": len(stopLimitStocks),
			"threshold":        threshold,
		}).Warn("Stop limit threshold exceeded, adding warning block")
		warning = o.deps.Builder.Warning(stopLimitStocks)
	}

	rep := o.deps.Builder.Build(date, sections, warning)

	if o.deps.Repository != nil {
		if err := o.deps.Repository.Save(ctx, rep); err != nil {
			return rep, fmt.Errorf("save report: %w", err)
		}
	}

	o.logger.WithFields(map[string]interface{}{
		"report_date":      dateStr,
		"total_stocks":     rep.TotalStocks(),
		"stop_limit_count": len(stopLimitStocks),
		"duration":         time.Since(start),
	}).Info("Digest run finished")

	return rep, nil
}

// analyze resolves one stock's analysis, preferring the cache so a
// partially failed day can be re-run without repeating API calls.
// The second return reports a cache hit.
func (o *Orchestrator) analyze(ctx context.Context, dateStr string, category contracts.Category, record contracts.StockRecord) (contracts.AnalysisResult, bool) {
	key := fmt.Sprintf("analysis:%s:%s:%s", dateStr, category, record.Code)

	if o.deps.Cache != nil {
		var cached contracts.AnalysisResult
		hit, err := o.deps.Cache.Get(ctx, key, &cached)
		if err != nil {
			o.logger.WithError(err).WithField("key", key).Warn("Analysis cache read failed")
		}
		if hit {
			o.logger.WithField("code", record.Code).Debug("Analysis cache hit")
			return cached, true
		}
	}

	result := o.deps.Analyzer.Analyze(ctx, record)

	if o.deps.Cache != nil {
		if err := o.deps.Cache.Set(ctx, key, result, analysisCacheTTL); err != nil {
			o.logger.WithError(err).WithField("key", key).Warn("Analysis cache write failed")
		}
	}

	return result, false
}
