package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morita/kabuto/internal/contracts"
	"github.com/morita/kabuto/internal/external/kabutan"
	"github.com/morita/kabuto/pkg/config"
	"github.com/morita/kabuto/pkg/httputil"
	"github.com/morita/kabuto/pkg/logger"
)

// scrapeCmd fetches one ranking table without running any analysis.
// Useful for checking the scraper against the live site.
var scrapeCmd = &cobra.Command{
	Use:   "scrape [category]",
	Short: "ランキングを1カテゴリ分スクレイピング（分析なし）",
	Long: `kabutan.jp のランキングテーブルを取得して表示します。
DB・Redis・Gemini には接続しません。

Categories: regular_up, regular_down, pts_up, pts_down

Examples:
  go run ./cmd/kabuto scrape regular_up
  go run ./cmd/kabuto scrape pts_down`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := contracts.Category(args[0])
		if !category.IsValid() {
			names := make([]string, 0, len(contracts.Categories()))
			for _, c := range contracts.Categories() {
				names = append(names, string(c))
			}
			return fmt.Errorf("unknown category %q (valid: %s)", args[0], strings.Join(names, ", "))
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log := logger.New(cfg)
		if verbose {
			log = logger.NewWithWriter(os.Stderr, "debug")
		}

		httpClient := httputil.NewWithTimeout(cfg, log, cfg.Kabutan.Timeout)
		client := kabutan.NewClient(cfg, httpClient, log)

		printHeader(fmt.Sprintf("Scrape: %s", category))
		printInfo("URL: %s", client.RankingURL(category))

		records := client.ScrapeRanking(context.Background(), category)
		if len(records) == 0 {
			printError("No records scraped")
			return nil
		}

		printSeparator()
		fmt.Printf("%-4s %-6s %-24s %10s %8s %s\n", "Rank", "Code", "Name", "Price", "Change", "S")
		printSeparator()
		for _, r := range records {
			marker := ""
			if r.IsStopLimit {
				marker = "S"
			}
			fmt.Printf("%-4d %-6s %-24s %10s %+7.2f%% %s\n",
				r.Rank, r.Code, r.Name, formatPrice(r.CurrentPrice), r.ChangePercent, marker)
		}
		printSeparator()
		printSuccess("%d records scraped", len(records))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}
