package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/williampepple1/post-crawler/internal/app"
	"github.com/williampepple1/post-crawler/internal/config"
	"github.com/williampepple1/post-crawler/internal/logger"
	"github.com/williampepple1/post-crawler/internal/storage"
	"github.com/williampepple1/post-crawler/pkg/models"
)

// Exit codes
const (
	exitOK          = 0
	exitError       = 1
	exitPersistence = 2
)

type flags struct {
	configFile  string
	inputFile   string
	source      string
	selector    string
	outputFile  string
	storeType   string
	storeKey    string
	headless    bool
	maxAccounts int
	logLevel    string
}

func main() {
	os.Exit(execute())
}

func execute() int {
	var f flags
	code := exitOK

	rootCmd := &cobra.Command{
		Use:           "scraper",
		Short:         "Crawl account post pages with a headless browser",
		Long:          "Visits every post URL of every account, extracts one record per page and appends the records to the stored result set.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				code = exitError
				return err
			}
			code, err = run(cmd.Context(), cfg)
			return err
		},
	}

	rootCmd.Flags().StringVar(&f.configFile, "config", "", "Path to configuration file (YAML)")
	rootCmd.Flags().StringVar(&f.inputFile, "input", "", "Targets file mapping accounts to post URLs")
	rootCmd.Flags().StringVar(&f.source, "source", "", "Target source: file or jobapi")
	rootCmd.Flags().StringVar(&f.selector, "selector", "", "CSS selector of the element to extract")
	rootCmd.Flags().StringVar(&f.outputFile, "output", "", "File to write this run's records and failures to")
	rootCmd.Flags().StringVar(&f.storeType, "store-type", "", "Result store: file, redis or kvstore")
	rootCmd.Flags().StringVar(&f.storeKey, "store-key", "", "Key of the persisted result set")
	rootCmd.Flags().BoolVar(&f.headless, "headless", true, "Run the browser headless")
	rootCmd.Flags().IntVar(&f.maxAccounts, "max-accounts", 0, "Maximum accounts crawled concurrently (0 = no limit)")
	rootCmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if code == exitOK {
			code = exitError
		}
	}
	return code
}

// loadConfig resolves configuration from file, environment and flags, in that order
func loadConfig(cmd *cobra.Command, f *flags) (*config.AppConfig, error) {
	_ = godotenv.Load()

	var cfg *config.AppConfig
	if f.configFile != "" {
		var err error
		cfg, err = config.Load(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("error loading configuration: %w", err)
		}
	} else {
		cfg = config.CreateDefault()
	}
	cfg.ApplyEnv()

	if f.source != "" {
		cfg.Source.Type = f.source
	}
	if f.inputFile != "" {
		cfg.Source.File = f.inputFile
	}
	if f.selector != "" {
		cfg.Crawler.Selector = f.selector
	}
	if f.outputFile != "" {
		cfg.IO.OutputFile = f.outputFile
	}
	if f.storeType != "" {
		cfg.Storage.Type = f.storeType
	}
	if f.storeKey != "" {
		cfg.Storage.Key = f.storeKey
	}
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if cmd.Flags().Changed("max-accounts") {
		cfg.Crawler.MaxAccounts = f.maxAccounts
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.AppConfig) (int, error) {
	base := logger.Init(cfg.Log.Level, cfg.Log.Console)
	log := logger.For("cli")
	log.Info().
		Str("source", cfg.Source.Type).
		Str("store", cfg.Storage.Type).
		Str("key", cfg.Storage.Key).
		Msg("Post crawler starting")

	runner, cleanup, err := app.Build(ctx, cfg, base)
	if err != nil {
		return exitError, err
	}
	defer cleanup()

	summary, err := runner.Run(ctx)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		if errors.Is(err, storage.ErrPersistence) {
			return exitPersistence, err
		}
		return exitError, err
	}
	return exitOK, nil
}

func printSummary(s *models.Summary) {
	fmt.Printf("Run %s: %d accounts, %d targets\n", s.RunID, s.Accounts, s.Targets)
	fmt.Printf("Success: %d, Failures: %d, Persisted: %d\n", s.Succeeded, s.Failed, s.Persisted)
	for _, f := range s.Failures {
		fmt.Printf("  [%s] %s %s", f.Cause, f.Target.Account, f.Target.URL)
		if f.Message != "" {
			fmt.Printf(": %s", f.Message)
		}
		fmt.Println()
	}
}
