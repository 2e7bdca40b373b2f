package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/tariff-monitor/internal/config"
	"github.com/jonathan/tariff-monitor/internal/detect"
	"github.com/jonathan/tariff-monitor/internal/fetch"
	"github.com/jonathan/tariff-monitor/internal/llm"
	"github.com/jonathan/tariff-monitor/internal/monitor"
	"github.com/jonathan/tariff-monitor/internal/observability"
	"github.com/jonathan/tariff-monitor/internal/resolve"
	"github.com/jonathan/tariff-monitor/internal/run"
	"github.com/jonathan/tariff-monitor/internal/selection"
	"github.com/jonathan/tariff-monitor/internal/sources"
	"github.com/jonathan/tariff-monitor/internal/store"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run a monitoring pass over every configured source",
	Long: `Processes each source page: resolves candidate PDF links, asks the LLM which
are the utility's canonical tariff documents, fingerprints each selected
document, and records additions, changes, and supersessions in the database.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runMonitorCmd,
}

var (
	runConfigPath  string
	runSources     string
	runReport      string
	runInit        bool
	runQuick       bool
	runUseBrowser  bool
	runVerbose     bool
	runConcurrency int
	runAPIKey      string
	runDatabaseURL string
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runSources, "sources", "s", "", "Path to the source-list JSON file")
	runCommand.Flags().StringVar(&runReport, "report", "", "Write the Markdown run report to this path (default: stdout)")
	runCommand.Flags().BoolVar(&runInit, "init", false, "Create the schema if absent before running")
	runCommand.Flags().BoolVarP(&runQuick, "quick", "q", false, "Probe with conditional requests before downloading unchanged documents")
	runCommand.Flags().BoolVar(&runUseBrowser, "use-browser", false, "Use headless browser for SPA source pages (requires Chrome)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")
	runCommand.Flags().IntVar(&runConcurrency, "concurrency", 0, "Sources processed in parallel")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	runCommand.Flags().StringVar(&runAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for document persistence
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runMonitorCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	list, err := sources.Load(cfg.Sources)
	if err != nil {
		return err
	}

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Init {
		if err := db.InitSchema(ctx); err != nil {
			return err
		}
	}

	client, err := llm.NewGeminiClient(ctx, nil, cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	fetcher := fetch.NewFetcher(nil)
	resolver := resolve.NewHTTPResolver(fetcher)
	resolver.UseBrowser = cfg.UseBrowser
	resolver.Verbose = cfg.Verbose

	m := &monitor.Monitor{
		Resolver:    resolver,
		Selector:    selection.NewLLMSelector(client),
		Detector:    detect.New(fetcher),
		Store:       db,
		Concurrency: cfg.Concurrency,
		Quick:       cfg.Quick,
		Verbose:     cfg.Verbose,
	}

	rec, runErr := m.Run(ctx, cfg.Sources, list)
	if rec != nil && cfg.Verbose {
		printer := observability.NewPrinter(os.Stdout)
		for i := range rec.Sources {
			printer.PrintSourceOutcome(&rec.Sources[i])
		}
		printer.PrintRunSummary(rec)
	}
	if rec != nil {
		if err := writeReport(cfg.Report, run.RenderMarkdown(rec)); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}

	if rec.TotalErrors() > 0 {
		return fmt.Errorf("run finished with %d error(s)", rec.TotalErrors())
	}
	return nil
}

// loadRunConfig merges the config file, CLI flags, and environment into the
// effective run configuration. Flags explicitly set on the command line win
// over config file values.
func loadRunConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	if cmd.Flags().Changed("sources") {
		cfg.Sources = runSources
	}
	if cmd.Flags().Changed("report") {
		cfg.Report = runReport
	}
	if cmd.Flags().Changed("init") {
		cfg.Init = runInit
	}
	if cmd.Flags().Changed("quick") {
		cfg.Quick = runQuick
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = runUseBrowser
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = runConcurrency
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = runAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}

	cfg = cfg.MergeWithDefaults(config.Config{
		Concurrency: monitor.DefaultConcurrency,
	})

	if cfg.Sources == "" {
		return cfg, fmt.Errorf("--sources is required (via flag or config)")
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	return cfg, nil
}

func writeReport(path, report string) error {
	if path == "" {
		_, err := fmt.Fprint(os.Stdout, report)
		return err
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}
