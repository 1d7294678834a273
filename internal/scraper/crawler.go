package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// Crawler visits one page per call and extracts one record from it
type Crawler struct {
	Session           Session
	Selector          string
	Extract           ExtractFunc
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	Log               zerolog.Logger
}

// NewCrawler creates a page crawler over session
func NewCrawler(session Session, selector string, extract ExtractFunc, navigationTimeout, selectorTimeout time.Duration, log zerolog.Logger) *Crawler {
	return &Crawler{
		Session:           session,
		Selector:          selector,
		Extract:           extract,
		NavigationTimeout: navigationTimeout,
		SelectorTimeout:   selectorTimeout,
		Log:               log,
	}
}

// Crawl visits target.URL and returns the extracted record. Every error it
// returns is a *models.CrawlFailure. The page is closed on every path.
func (c *Crawler) Crawl(ctx context.Context, target models.CrawlTarget) (rec models.ExtractedRecord, err error) {
	log := c.Log.With().Str("account", target.Account).Str("url", target.URL).Logger()

	page, err := c.Session.OpenPage(ctx)
	if err != nil {
		return rec, c.fail(ctx, target, models.CauseSession, err)
	}
	log.Debug().Msg("New browser page")

	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Error closing page")
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, c.NavigationTimeout)
	err = page.Navigate(navCtx, target.URL)
	cancel()
	if err != nil {
		return rec, c.fail(ctx, target, models.CauseNavigation, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.SelectorTimeout)
	err = page.WaitForSelector(waitCtx, c.Selector)
	cancel()
	if err != nil {
		return rec, c.fail(ctx, target, models.CauseSelectorTimeout, err)
	}

	// the node can vanish after the wait succeeds, so evaluation is bounded too
	evalCtx, cancel := context.WithTimeout(ctx, c.SelectorTimeout)
	el, err := page.Evaluate(evalCtx, c.Selector)
	cancel()
	if err != nil {
		return rec, c.fail(ctx, target, models.CauseExtraction, err)
	}

	rec, err = c.extract(target, el)
	if err != nil {
		return rec, c.fail(ctx, target, models.CauseExtraction, err)
	}

	log.Debug().Msg("Extracted record")
	return rec, nil
}

// extract runs the pluggable extraction function, turning a panic into an error
func (c *Crawler) extract(target models.CrawlTarget, el Element) (rec models.ExtractedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()
	return c.Extract(target, el)
}

// fail builds the failure for a step, reporting caller cancellation as such
func (c *Crawler) fail(ctx context.Context, target models.CrawlTarget, cause models.FailureCause, err error) *models.CrawlFailure {
	if errors.Is(ctx.Err(), context.Canceled) {
		cause = models.CauseCanceled
	}
	return models.NewCrawlFailure(target, cause, err)
}
