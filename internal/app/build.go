package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/williampepple1/post-crawler/internal/config"
	"github.com/williampepple1/post-crawler/internal/extraction"
	"github.com/williampepple1/post-crawler/internal/io"
	"github.com/williampepple1/post-crawler/internal/jobapi"
	"github.com/williampepple1/post-crawler/internal/proxy"
	"github.com/williampepple1/post-crawler/internal/scraper"
	"github.com/williampepple1/post-crawler/internal/storage"
	"github.com/williampepple1/post-crawler/internal/worker"
)

// NewSource creates the target source selected by the configuration
func NewSource(cfg *config.SourceConfig, log zerolog.Logger) (TargetSource, error) {
	switch cfg.Type {
	case config.SourceFile:
		return io.NewTargetReader(cfg.File), nil
	case config.SourceJobAPI:
		return jobapi.NewClient(cfg.JobAPI, log.With().Str("component", "jobapi").Logger()), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}

// NewCrawlPipeline builds the page crawler, sequencer and orchestrator over session
func NewCrawlPipeline(cfg *config.AppConfig, session scraper.Session, log zerolog.Logger) *worker.Orchestrator {
	extractor := extraction.NewExtractor(&cfg.Extraction)
	crawler := scraper.NewCrawler(
		session,
		cfg.Crawler.Selector,
		extractor.Func(),
		cfg.Crawler.NavigationTimeout,
		cfg.Crawler.SelectorTimeout,
		log.With().Str("component", "crawler").Logger(),
	)
	sequencer := worker.NewSequencer(
		crawler,
		cfg.Crawler.PageTimeout,
		cfg.Crawler.PageInterval,
		log.With().Str("component", "sequencer").Logger(),
	)
	return worker.NewOrchestrator(sequencer, cfg.Crawler.MaxAccounts, log.With().Str("component", "orchestrator").Logger())
}

// Build assembles a runner from the configuration. The returned cleanup
// closes the browser and the store and must be called.
func Build(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*Runner, func(), error) {
	source, err := NewSource(&cfg.Source, log)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.New(&cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	session, err := scraper.NewBrowserSession(ctx, &cfg.Browser, proxy.NewManager(&cfg.Proxies), log.With().Str("component", "browser").Logger())
	if err != nil {
		if closeErr := store.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Error closing store")
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing browser")
		}
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing store")
		}
	}

	runner := &Runner{
		Source:       source,
		Orchestrator: NewCrawlPipeline(cfg, session, log),
		Store:        store,
		Key:          cfg.Storage.Key,
		Log:          log.With().Str("component", "runner").Logger(),
	}
	if cfg.IO.OutputFile != "" {
		runner.Output = io.NewResultWriter(cfg.IO.OutputFile)
	}

	return runner, cleanup, nil
}
