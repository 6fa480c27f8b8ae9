package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusLimit int

// statusCmd lists recently stored reports
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "保存済みレポートの一覧を表示",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		summaries, err := p.repo.ListRecent(ctx, statusLimit)
		if err != nil {
			return fmt.Errorf("list reports: %w", err)
		}

		printHeader("Stored Reports")
		if len(summaries) == 0 {
			printInfo("No reports stored yet")
			return nil
		}

		fmt.Printf("%-12s %-8s %-10s %s\n", "Date", "Stocks", "Warning", "Created")
		printSeparator()
		for _, s := range summaries {
			warning := "-"
			if s.HasWarning {
				warning = "yes"
			}
			fmt.Printf("%-12s %-8d %-10s %s\n",
				s.ReportDate.Format("2006-01-02"), s.StockCount, warning,
				s.CreatedAt.Format("2006-01-02 15:04"))
		}
		printSeparator()
		printSuccess("%d reports", len(summaries))

		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of reports to list")
	rootCmd.AddCommand(statusCmd)
}
