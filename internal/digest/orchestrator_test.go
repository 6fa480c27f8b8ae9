package digest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/internal/digestconfig"
	"github.com/morita/kabuto/internal/report"
	"github.com/morita/kabuto/pkg/logger"
)

type fakeScraper struct {
	rankings map[contracts.Category][]contracts.StockRecord
	calls    []contracts.Category
}

func (f *fakeScraper) ScrapeRanking(ctx context.Context, category contracts.Category) []contracts.StockRecord {
	f.calls = append(f.calls, category)
	return f.rankings[category]
}

type fakeAnalyzer struct {
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, record contracts.StockRecord) contracts.AnalysisResult {
	f.calls++
	return contracts.AnalysisResult{
		AnalysisText: "分析: " + record.Name,
		SourceURLs:   []string{"https://example.com/" + record.Code},
	}
}

type fakeRepo struct {
	saved *contracts.Report
	err   error
}

func (f *fakeRepo) Save(ctx context.Context, r *contracts.Report) error {
	f.saved = r
	return f.err
}

func (f *fakeRepo) GetLatest(ctx context.Context) (*contracts.Report, error) { return f.saved, nil }
func (f *fakeRepo) GetByDate(ctx context.Context, date time.Time) (*contracts.Report, error) {
	return f.saved, nil
}
func (f *fakeRepo) ListRecent(ctx context.Context, limit int) ([]contracts.ReportSummary, error) {
	return nil, nil
}

func record(rank int, code, name string, change float64, stopLimit bool) contracts.StockRecord {
	return contracts.StockRecord{
		Rank: rank, Code: code, Name: name,
		ChangePercent: change, IsStopLimit: stopLimit,
		SourceURL: "https://kabutan.jp/warning/value_increase",
	}
}

func newOrchestrator(scraper *fakeScraper, analyzer *fakeAnalyzer, repo *fakeRepo, cfg *digestconfig.Config) *Orchestrator {
	log := logger.NewWithWriter(io.Discard, "error")
	var repository contracts.ReportRepository
	if repo != nil {
		repository = repo
	}
	return New(Deps{
		Scraper:    scraper,
		Analyzer:   analyzer,
		Repository: repository,
		Builder:    report.NewBuilder(cfg, log),
		Config:     cfg,
		CallDelay:  0,
		Logger:     log,
	})
}

func TestRun_FullPipeline(t *testing.T) {
	scraper := &fakeScraper{rankings: map[contracts.Category][]contracts.StockRecord{
		contracts.CategoryRegularUp: {
			record(1, "7203", "トヨタ自動車", 5.23, false),
			record(2, "4585", "ＵＭＮファーマ", 23.87, true),
		},
		contracts.CategoryPTSDown: {
			record(1, "9984", "ソフトバンクグループ", -16.40, true),
		},
	}}
	analyzer := &fakeAnalyzer{}
	repo := &fakeRepo{}

	o := newOrchestrator(scraper, analyzer, repo, digestconfig.Default())
	date := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	rep, err := o.Run(context.Background(), date)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	// Every category is scraped once, in fixed order
	if len(scraper.calls) != 4 {
		t.Errorf("scrape calls = %d, want 4", len(scraper.calls))
	}
	for i, want := range contracts.Categories() {
		if scraper.calls[i] != want {
			t.Errorf("scrape call %d = %s, want %s", i, scraper.calls[i], want)
		}
	}

	if analyzer.calls != 3 {
		t.Errorf("analyzer calls = %d, want 3", analyzer.calls)
	}
	if rep.TotalStocks() != 3 {
		t.Errorf("TotalStocks() = %d, want 3", rep.TotalStocks())
	}

	// 2 stop-limit stocks < default threshold 10: no warning
	if rep.Warning != "" {
		t.Errorf("Warning = %q, want empty below threshold", rep.Warning)
	}

	if !strings.Contains(rep.Document, "分析: トヨタ自動車") {
		t.Errorf("document should embed the analysis text:\n%s", rep.Document)
	}

	if repo.saved != rep {
		t.Error("report was not persisted")
	}
}

func TestRun_WarningAtThreshold(t *testing.T) {
	var stocks []contracts.StockRecord
	for i := 0; i < 10; i++ {
		code := fmt.Sprintf("%04d", 1300+i)
		stocks = append(stocks, record(i+1, code, "銘柄"+code, 20.0, true))
	}
	scraper := &fakeScraper{rankings: map[contracts.Category][]contracts.StockRecord{
		contracts.CategoryRegularUp: stocks,
	}}

	o := newOrchestrator(scraper, &fakeAnalyzer{}, &fakeRepo{}, digestconfig.Default())

	rep, err := o.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if !strings.Contains(rep.Warning, "【Warning】10 Stop-High/Low Stocks Today!") {
		t.Errorf("Warning = %q", rep.Warning)
	}
	if !strings.Contains(rep.Document, "【Warning】") {
		t.Error("warning block should be embedded in the document")
	}
}

func TestRun_EmptyCategoriesSkipAnalysis(t *testing.T) {
	scraper := &fakeScraper{rankings: map[contracts.Category][]contracts.StockRecord{}}
	analyzer := &fakeAnalyzer{}

	o := newOrchestrator(scraper, analyzer, &fakeRepo{}, digestconfig.Default())

	rep, err := o.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if analyzer.calls != 0 {
		t.Errorf("analyzer calls = %d, want 0", analyzer.calls)
	}
	if rep.TotalStocks() != 0 {
		t.Errorf("TotalStocks() = %d, want 0", rep.TotalStocks())
	}
}

func TestRun_SaveFailureSurfaces(t *testing.T) {
	scraper := &fakeScraper{rankings: map[contracts.Category][]contracts.StockRecord{
		contracts.CategoryRegularUp: {record(1, "7203", "トヨタ自動車", 5.23, false)},
	}}
	repo := &fakeRepo{err: fmt.Errorf("connection lost")}

	o := newOrchestrator(scraper, &fakeAnalyzer{}, repo, digestconfig.Default())

	rep, err := o.Run(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected persistence failure to surface")
	}
	if rep == nil {
		t.Error("the assembled report should still be returned alongside the error")
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	scraper := &fakeScraper{rankings: map[contracts.Category][]contracts.StockRecord{
		contracts.CategoryRegularUp: {record(1, "7203", "トヨタ自動車", 5.23, false)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newOrchestrator(scraper, &fakeAnalyzer{}, &fakeRepo{}, digestconfig.Default())

	if _, err := o.Run(ctx, time.Now()); err == nil {
		t.Error("cancelled context should abort the run")
	}
}
