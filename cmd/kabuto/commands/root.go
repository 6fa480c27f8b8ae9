package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kabuto",
	Short: "kabuto - kabutan.jp デイリー株式レポートジェネレーター",
	Long: `kabuto Unified CLI

kabutan.jp の値上がり/値下がりランキングをスクレイピングし、
Gemini で変動要因を分析してデイリーレポートを生成します。

Usage:
  go run ./cmd/kabuto [command]

Examples:
  go run ./cmd/kabuto run
  go run ./cmd/kabuto scrape regular_up
  go run ./cmd/kabuto scheduler start
  go run ./cmd/kabuto api
  go run ./cmd/kabuto status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "digest config file (default is config/digest.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
