package worker

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// AccountRunner crawls every URL of one account
type AccountRunner interface {
	RunAccount(ctx context.Context, account string, urls []string) ([]models.ExtractedRecord, []models.CrawlFailure)
}

// Orchestrator runs one account runner per account concurrently
type Orchestrator struct {
	Runner AccountRunner
	// MaxAccounts caps the accounts crawled at once; zero means no cap
	MaxAccounts int
	Log         zerolog.Logger
}

// NewOrchestrator creates a new crawl orchestrator
func NewOrchestrator(runner AccountRunner, maxAccounts int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		Runner:      runner,
		MaxAccounts: maxAccounts,
		Log:         log,
	}
}

type accountOutcome struct {
	records  []models.ExtractedRecord
	failures []models.CrawlFailure
}

// Run crawls all accounts and returns once every account has finished.
// Records of one account keep their URL order; accounts are concatenated
// in account name order. Failures never abort the run.
func (o *Orchestrator) Run(ctx context.Context, targets map[string][]string) (models.ResultSet, []models.CrawlFailure) {
	accounts := make([]string, 0, len(targets))
	for account := range targets {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	o.Log.Info().
		Int("accounts", len(accounts)).
		Int("max_accounts", o.MaxAccounts).
		Msg("Starting crawl")

	// each goroutine owns one slot, so no locking is needed
	outcomes := make([]accountOutcome, len(accounts))

	var g errgroup.Group
	if o.MaxAccounts > 0 {
		g.SetLimit(o.MaxAccounts)
	}
	for i, account := range accounts {
		g.Go(func() error {
			records, failures := o.Runner.RunAccount(ctx, account, targets[account])
			outcomes[i] = accountOutcome{records: records, failures: failures}
			return nil
		})
	}
	_ = g.Wait()

	fresh := models.ResultSet{Posts: make([]models.ExtractedRecord, 0)}
	var failures []models.CrawlFailure
	for _, outcome := range outcomes {
		fresh.Posts = append(fresh.Posts, outcome.records...)
		failures = append(failures, outcome.failures...)
	}

	o.Log.Info().
		Int("records", len(fresh.Posts)).
		Int("failures", len(failures)).
		Msg("Crawl finished")

	return fresh, failures
}
