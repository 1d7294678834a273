// Package app drives one crawl run: read targets, crawl, merge with the
// stored result set and save it back.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/williampepple1/post-crawler/internal/merge"
	"github.com/williampepple1/post-crawler/internal/storage"
	"github.com/williampepple1/post-crawler/pkg/models"
)

// TargetSource provides the account to URL mapping
type TargetSource interface {
	Targets(ctx context.Context) (map[string][]string, error)
}

// Orchestrator crawls every account of a mapping
type Orchestrator interface {
	Run(ctx context.Context, targets map[string][]string) (models.ResultSet, []models.CrawlFailure)
}

// OutputWriter records what a single run produced
type OutputWriter interface {
	SaveToFile(runID string, fresh models.ResultSet, failures []models.CrawlFailure) error
}

// Runner wires the collaborators of a run together
type Runner struct {
	Source       TargetSource
	Orchestrator Orchestrator
	Store        storage.Store
	Key          string
	// Output is optional
	Output OutputWriter
	Log    zerolog.Logger
}

// Run performs one run. Page failures are reported in the summary; load
// and save failures abort the run with an error matching storage.ErrPersistence.
func (r *Runner) Run(ctx context.Context) (*models.Summary, error) {
	summary := &models.Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := r.Log.With().Str("run_id", summary.RunID).Logger()

	targets, err := r.Source.Targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	summary.Accounts = len(targets)
	for _, urls := range targets {
		summary.Targets += len(urls)
	}
	log.Info().
		Int("accounts", summary.Accounts).
		Int("targets", summary.Targets).
		Msg("Targets loaded")

	fresh, failures := r.Orchestrator.Run(ctx, targets)
	summary.Succeeded = len(fresh.Posts)
	summary.Failed = len(failures)
	summary.Failures = failures
	for _, f := range failures {
		log.Warn().
			Str("account", f.Target.Account).
			Str("url", f.Target.URL).
			Str("cause", string(f.Cause)).
			Str("error", f.Message).
			Msg("Target failed")
	}

	if r.Output != nil {
		if err := r.Output.SaveToFile(summary.RunID, fresh, failures); err != nil {
			log.Error().Err(err).Msg("Failed to write run output")
		}
	}

	// persistence ignores ctx cancellation so that crawled records are not lost
	persistCtx := context.WithoutCancel(ctx)

	previous, err := r.Store.Load(persistCtx, r.Key)
	if err != nil {
		summary.FinishedAt = time.Now()
		return summary, err
	}
	if previous == nil {
		log.Info().Str("key", r.Key).Msg("No previous result set")
	} else {
		log.Info().Str("key", r.Key).Int("posts", len(previous.Posts)).Msg("Loaded previous result set")
	}

	merged := merge.Merge(previous, fresh)
	if err := r.Store.Save(persistCtx, r.Key, merged); err != nil {
		summary.FinishedAt = time.Now()
		return summary, err
	}
	summary.Persisted = len(merged.Posts)
	summary.FinishedAt = time.Now()

	log.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("persisted", summary.Persisted).
		Dur("duration", summary.Duration()).
		Msg("Run complete")
	return summary, nil
}
