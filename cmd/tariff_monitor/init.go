package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/tariff-monitor/internal/store"
)

var initCommand = &cobra.Command{
	Use:   "init",
	Short: "Create the tariff_documents table and indexes",
	Long:  "Initializes the database schema. Safe to run repeatedly; existing tables and indexes are left untouched.",
	RunE:  initSchemaCmd,
}

var initDatabaseURL string

func init() {
	initCommand.Flags().StringVar(&initDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(initCommand)
}

func initSchemaCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	databaseURL := initDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	db, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	fmt.Println("Schema initialized.")
	return nil
}
