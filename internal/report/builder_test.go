package report

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/internal/digestconfig"
	"github.com/morita/kabuto/pkg/logger"
)

func newTestBuilder() *Builder {
	return NewBuilder(digestconfig.Default(), logger.NewWithWriter(io.Discard, "error"))
}

func sampleSections() map[contracts.Category][]contracts.AnalyzedStock {
	return map[contracts.Category][]contracts.AnalyzedStock{
		contracts.CategoryRegularUp: {
			{
				StockRecord: contracts.StockRecord{
					Rank: 1, Code: "7203", Name: "トヨタ自動車", ChangePercent: 5.23,
				},
				AnalysisText: "決算上方修正が好感されました。",
				SourceURLs:   []string{"https://example.com/news/1", "https://example.com/news/2"},
			},
			{
				StockRecord: contracts.StockRecord{
					Rank: 2, Code: "4585", Name: "ＵＭＮファーマ", ChangePercent: 23.87, IsStopLimit: true,
				},
				AnalysisText: "提携発表によりストップ高。",
			},
		},
		contracts.CategoryRegularDown: {
			{
				StockRecord: contracts.StockRecord{
					Rank: 1, Code: "9984", Name: "ソフトバンクグループ", ChangePercent: -16.40, IsStopLimit: true,
				},
				AnalysisText: "下方修正を嫌気。",
			},
		},
		contracts.CategoryPTSUp: {},
	}
}

func TestBuild_Document(t *testing.T) {
	b := newTestBuilder()
	date := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	report := b.Build(date, sampleSections(), "")
	doc := report.Document

	if !strings.HasPrefix(doc, "2026-08-25 Stock Market Analysis Report\n") {
		t.Errorf("document should open with the dated title:\n%s", doc)
	}
	if !strings.Contains(doc, "Report Date: 2026-08-25\n") {
		t.Errorf("document should carry the report date line:\n%s", doc)
	}

	for _, want := range []string{
		"Regular Market - Top Gainers\n",
		"1. トヨタ自動車 (7203) - Change: +5.23%\n",
		"  Gemini Analysis: 決算上方修正が好感されました。\n",
		"  Source(s): https://example.com/news/1, https://example.com/news/2\n",
		"2. ＵＭＮファーマ (4585) - Change: +23.87% (Ｓ高)\n",
		"Regular Market - Top Losers\n",
		"1. ソフトバンクグループ (9984) - Change: -16.40% (Ｓ安)\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	// Stocks without cited sources fall back to N/A
	if !strings.Contains(doc, "  Source(s): N/A\n") {
		t.Errorf("document should mark missing sources as N/A:\n%s", doc)
	}

	// Empty and absent categories never produce a section header
	if strings.Contains(doc, "PTS Market - Top Gainers") ||
		strings.Contains(doc, "PTS Market - Top Losers") {
		t.Errorf("empty sections must be omitted:\n%s", doc)
	}
}

func TestBuild_SectionOrder(t *testing.T) {
	b := newTestBuilder()
	sections := map[contracts.Category][]contracts.AnalyzedStock{}
	for _, c := range contracts.Categories() {
		sections[c] = []contracts.AnalyzedStock{
			{StockRecord: contracts.StockRecord{Rank: 1, Code: "7203", Name: "x", ChangePercent: 1}},
		}
	}

	doc := b.Build(time.Now(), sections, "").Document

	cfg := digestconfig.Default()
	positions := []int{
		strings.Index(doc, cfg.Report.Sections.RegularUp),
		strings.Index(doc, cfg.Report.Sections.RegularDown),
		strings.Index(doc, cfg.Report.Sections.PTSUp),
		strings.Index(doc, cfg.Report.Sections.PTSDown),
	}

	for i, pos := range positions {
		if pos < 0 {
			t.Fatalf("section %d missing from document:\n%s", i, doc)
		}
		if i > 0 && positions[i-1] >= pos {
			t.Errorf("sections out of order: %v", positions)
		}
	}
}

func TestBuild_WarningPlacement(t *testing.T) {
	b := newTestBuilder()
	warning := b.Warning([]contracts.StopLimitStock{
		{Name: "ＵＭＮファーマ", Code: "4585", Change: 23.87, Market: "Regular"},
		{Name: "ソフトバンクグループ", Code: "9984", Change: -16.40, Market: "PTS"},
	})

	doc := b.Build(time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), sampleSections(), warning).Document

	warnPos := strings.Index(doc, "【Warning】")
	datePos := strings.Index(doc, "Report Date:")
	if warnPos < 0 || datePos < 0 || warnPos > datePos {
		t.Errorf("warning block must precede the report date line:\n%s", doc)
	}
}

func TestWarning_Format(t *testing.T) {
	b := newTestBuilder()

	warning := b.Warning([]contracts.StopLimitStock{
		{Name: "ＵＭＮファーマ", Code: "4585", Change: 23.87, Market: "Regular"},
		{Name: "ソフトバンクグループ", Code: "9984", Change: -16.40, Market: "PTS"},
	})

	lines := strings.Split(warning, "\n")
	if len(lines) != 4 {
		t.Fatalf("warning should have 4 lines, got %d:\n%s", len(lines), warning)
	}
	if lines[0] != "【Warning】2 Stop-High/Low Stocks Today!" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != warningSeparator {
		t.Errorf("separator = %q", lines[1])
	}
	if lines[2] != "- ＵＭＮファーマ (4585) - Market: Regular, Change: +23.87% (Ｓ高)" {
		t.Errorf("gainer line = %q", lines[2])
	}
	if lines[3] != "- ソフトバンクグループ (9984) - Market: PTS, Change: -16.40% (Ｓ安)" {
		t.Errorf("loser line = %q", lines[3])
	}
}
