package main

import (
	"os"

	"github.com/morita/kabuto/cmd/kabuto/commands"
)

// main is the entry point for the kabuto CLI
// ⭐ 統合CLIエントリーポイント: go run ./cmd/kabuto [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
