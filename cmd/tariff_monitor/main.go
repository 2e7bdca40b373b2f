// Package main provides the entry point for the tariff monitor CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tariff_monitor",
	Short: "Utility tariff document change monitor",
	Long:  "tariff_monitor watches utility source pages for tariff documents, fingerprints their content, and records changes in PostgreSQL with full supersession history.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
