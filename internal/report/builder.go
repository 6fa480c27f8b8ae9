package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/internal/digestconfig"
	"github.com/morita/kabuto/pkg/logger"
)

const warningSeparator = "----------------------------------------"

// Builder renders the daily digest into a plain-text document
// ⭐ SSOT: レポート本文の整形はここだけ
type Builder struct {
	cfg    *digestconfig.Config
	logger *logger.Logger
}

// NewBuilder creates a report builder
func NewBuilder(cfg *digestconfig.Config, log *logger.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		logger: log.WithField("module", "report"),
	}
}

// Build assembles the day's report. The rendered document is returned on
// the Report so any delivery mechanism (storage, API, mail) can consume
// it as-is.
func (b *Builder) Build(date time.Time, sections map[contracts.Category][]contracts.AnalyzedStock, warning string) *contracts.Report {
	report := &contracts.Report{
		ReportDate: date,
		Sections:   sections,
		Warning:    warning,
		CreatedAt:  time.Now(),
	}
	report.Document = b.renderDocument(date, sections, warning)

	b.logger.WithFields(map[string]interface{}{
		"report_date":  date.Format("2006-01-02"),
		"total_stocks": report.TotalStocks(),
		"has_warning":  warning != "",
	}).Info("Report assembled")

	return report
}

// Warning renders the stop-limit warning block: a count header, a
// separator, and one line per flagged stock
func (b *Builder) Warning(stocks []contracts.StopLimitStock) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "【Warning】%d Stop-High/Low Stocks Today!\n", len(stocks))
	sb.WriteString(warningSeparator)

	for _, s := range stocks {
		stopType := "(Ｓ高)"
		if s.Change <= 0 {
			stopType = "(Ｓ安)"
		}
		fmt.Fprintf(&sb, "\n- %s (%s) - Market: %s, Change: %+.2f%% %s", s.Name, s.Code, s.Market, s.Change, stopType)
	}

	return sb.String()
}

// renderDocument produces the full document text: title, optional
// warning block, report date, then the four sections in fixed order.
// Empty sections are omitted entirely.
func (b *Builder) renderDocument(date time.Time, sections map[contracts.Category][]contracts.AnalyzedStock, warning string) string {
	dateStr := date.Format("2006-01-02")

	var sb strings.Builder
	fmt.Fprintf(&sb, b.cfg.Report.TitleFormat+"\n\n", dateStr)

	if warning != "" {
		sb.WriteString(warning)
		sb.WriteString("\n\n")
	}

	fmt.Fprintf(&sb, "Report Date: %s\n\n", dateStr)

	for _, category := range contracts.Categories() {
		stocks := sections[category]
		if len(stocks) == 0 {
			continue
		}

		sb.WriteString(b.cfg.Report.Sections.Title(category))
		sb.WriteString("\n")

		for _, stock := range stocks {
			sb.WriteString(stockLine(stock))
			sb.WriteString("\n")
			fmt.Fprintf(&sb, "  Gemini Analysis: %s\n", strings.TrimSpace(stock.AnalysisText))
			fmt.Fprintf(&sb, "  Source(s): %s\n", sourcesText(stock.SourceURLs))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// stockLine renders one ranked entry, e.g.
// "1. トヨタ自動車 (7203) - Change: +5.23% (Ｓ高)"
func stockLine(stock contracts.AnalyzedStock) string {
	stopStatus := ""
	if stock.IsStopLimit {
		if stock.ChangePercent > 0 {
			stopStatus = " (Ｓ高)"
		} else {
			stopStatus = " (Ｓ安)"
		}
	}

	return fmt.Sprintf("%d. %s (%s) - Change: %+.2f%%%s",
		stock.Rank, stock.Name, stock.Code, stock.ChangePercent, stopStatus)
}

func sourcesText(urls []string) string {
	if len(urls) == 0 {
		return "N/A"
	}
	return strings.Join(urls, ", ")
}
