package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// PageCrawler visits one target
type PageCrawler interface {
	Crawl(ctx context.Context, target models.CrawlTarget) (models.ExtractedRecord, error)
}

// Sequencer crawls the URLs of one account strictly one after another
type Sequencer struct {
	Crawler PageCrawler
	// PageTimeout bounds one whole page visit; zero disables it
	PageTimeout time.Duration
	// PageInterval is the minimum gap between two page visits of an account
	PageInterval time.Duration
	Log          zerolog.Logger
}

// NewSequencer creates an account sequencer
func NewSequencer(crawler PageCrawler, pageTimeout, pageInterval time.Duration, log zerolog.Logger) *Sequencer {
	return &Sequencer{
		Crawler:      crawler,
		PageTimeout:  pageTimeout,
		PageInterval: pageInterval,
		Log:          log,
	}
}

// RunAccount crawls urls in order. A failed page is recorded and the next
// URL is tried; only a broken session or cancellation stops the account,
// and then every URL not attempted is reported as failed too.
func (s *Sequencer) RunAccount(ctx context.Context, account string, urls []string) ([]models.ExtractedRecord, []models.CrawlFailure) {
	log := s.Log.With().Str("account", account).Logger()
	log.Debug().Int("urls", len(urls)).Msg("Account started")

	var limiter *rate.Limiter
	if s.PageInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.PageInterval), 1)
	}

	records := make([]models.ExtractedRecord, 0, len(urls))
	var failures []models.CrawlFailure

	for i, url := range urls {
		target := models.CrawlTarget{Account: account, URL: url}

		if err := s.pace(ctx, limiter); err != nil {
			failures = append(failures, unattempted(account, urls[i:], models.CauseCanceled, err)...)
			break
		}

		rec, err := s.crawl(ctx, target)
		if err == nil {
			records = append(records, rec)
			continue
		}

		failure := asFailure(target, err)
		failures = append(failures, *failure)
		log.Warn().
			Str("url", url).
			Str("cause", string(failure.Cause)).
			Err(failure.Err).
			Msg("Page failed")

		if failure.Cause == models.CauseSession || failure.Cause == models.CauseCanceled {
			failures = append(failures, unattempted(account, urls[i+1:], failure.Cause, failure.Err)...)
			break
		}
	}

	log.Info().
		Int("succeeded", len(records)).
		Int("failed", len(failures)).
		Msg("Account done")

	return records, failures
}

func (s *Sequencer) pace(ctx context.Context, limiter *rate.Limiter) error {
	if limiter != nil {
		return limiter.Wait(ctx)
	}
	return ctx.Err()
}

func (s *Sequencer) crawl(ctx context.Context, target models.CrawlTarget) (models.ExtractedRecord, error) {
	if s.PageTimeout <= 0 {
		return s.Crawler.Crawl(ctx, target)
	}
	pageCtx, cancel := context.WithTimeout(ctx, s.PageTimeout)
	defer cancel()
	return s.Crawler.Crawl(pageCtx, target)
}

// asFailure keeps typed failures and files anything else under extraction
func asFailure(target models.CrawlTarget, err error) *models.CrawlFailure {
	var failure *models.CrawlFailure
	if errors.As(err, &failure) {
		return failure
	}
	return models.NewCrawlFailure(target, models.CauseExtraction, err)
}

func unattempted(account string, urls []string, cause models.FailureCause, err error) []models.CrawlFailure {
	failures := make([]models.CrawlFailure, 0, len(urls))
	for _, url := range urls {
		failures = append(failures, *models.NewCrawlFailure(models.CrawlTarget{Account: account, URL: url}, cause, err))
	}
	return failures
}
