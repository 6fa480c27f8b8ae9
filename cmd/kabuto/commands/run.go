package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	runDate          string
	runPrintDocument bool
)

// runCmd executes one full digest run: scrape, analyze, persist
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "デイリーダイジェストを1回実行",
	Long: `kabutan.jp の4つのランキングをスクレイピングし、各銘柄を Gemini で
分析してレポートを生成・保存します。

Examples:
  go run ./cmd/kabuto run
  go run ./cmd/kabuto run --date 2026-08-22
  go run ./cmd/kabuto run --print`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		loc, err := p.digestCfg.Location()
		if err != nil {
			return err
		}

		date := time.Now().In(loc)
		if runDate != "" {
			date, err = time.ParseInLocation("2006-01-02", runDate, loc)
			if err != nil {
				return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", runDate)
			}
		}
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		printHeader("Daily Digest Run")
		printInfo("Report date: %s", date.Format("2006-01-02"))

		start := time.Now()
		report, err := p.orchestrator.Run(ctx, date)
		if err != nil {
			if report != nil {
				// Report was assembled but could not be persisted
				printError("Digest completed but save failed: %v", err)
			}
			return err
		}

		printSeparator()
		printSuccess("Digest completed in %s", time.Since(start).Round(time.Millisecond))
		printInfo("Stocks analyzed: %d", report.TotalStocks())
		printInfo("Stop-limit stocks: %d", report.StopLimitCount())
		if report.Warning != "" {
			printInfo("Warning block included")
		}

		if runPrintDocument {
			printSeparator()
			fmt.Println(report.Document)
		}

		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "report date as YYYY-MM-DD (default: today)")
	runCmd.Flags().BoolVar(&runPrintDocument, "print", false, "print the generated document to stdout")
	rootCmd.AddCommand(runCmd)
}
