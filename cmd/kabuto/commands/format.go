package commands

import (
	"fmt"
	"strings"
)

// Console output helpers shared by the CLI commands

func printHeader(title string) {
	fmt.Printf("\n=== %s ===\n\n", title)
}

func printSeparator() {
	fmt.Println(strings.Repeat("-", 60))
}

func printSuccess(format string, args ...interface{}) {
	fmt.Printf("✅ "+format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	fmt.Printf("❌ "+format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	fmt.Printf("ℹ️  "+format+"\n", args...)
}

// formatPrice renders a nullable price for table output
func formatPrice(price *float64) string {
	if price == nil {
		return "--"
	}
	return fmt.Sprintf("%.1f", *price)
}
