package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonathan/tariff-monitor/internal/store"
)

var listCommand = &cobra.Command{
	Use:   "list <utility-name>",
	Short: "List the tracked documents of a utility",
	Long:  "Prints the documents tracked for a utility. By default only ACTIVE documents are shown; --all includes superseded history.",
	Args:  cobra.ExactArgs(1),
	RunE:  listDocumentsCmd,
}

var (
	listAll         bool
	listDatabaseURL string
)

func init() {
	listCommand.Flags().BoolVar(&listAll, "all", false, "Include OBSOLETE documents")
	listCommand.Flags().StringVar(&listDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(listCommand)
}

func listDocumentsCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	utilityName := args[0]

	databaseURL := listDatabaseURL
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

	var docs []store.TrackedDocument
	if listAll {
		docs, err = db.ListByUtility(ctx, utilityName)
	} else {
		docs, err = db.ActiveForUtility(ctx, utilityName)
	}
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Printf("No tracked documents for %q.\n", utilityName)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tLAST CHECKED\tNAME\tURL")
	for _, doc := range docs {
		lastChecked := "-"
		if doc.LastChecked != nil {
			lastChecked = doc.LastChecked.Format("2006-01-02 15:04")
		}
		name := "-"
		if doc.DocumentName != nil {
			name = *doc.DocumentName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", doc.Status, lastChecked, name, doc.URL)
	}
	return w.Flush()
}
