package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/post-crawler/internal/scraper"
	"github.com/williampepple1/post-crawler/internal/scraper/scrapertest"
	"github.com/williampepple1/post-crawler/pkg/models"
)

// MockCrawler returns scripted errors per URL and records the call order
type MockCrawler struct {
	mu     sync.Mutex
	errs   map[string]error
	visits []string
}

var _ PageCrawler = (*MockCrawler)(nil)

func (m *MockCrawler) Crawl(ctx context.Context, target models.CrawlTarget) (models.ExtractedRecord, error) {
	m.mu.Lock()
	m.visits = append(m.visits, target.URL)
	err := m.errs[target.URL]
	m.mu.Unlock()

	if err != nil {
		return models.ExtractedRecord{}, err
	}
	return models.ExtractedRecord{Account: target.Account, URL: target.URL}, nil
}

func urlsOf(records []models.ExtractedRecord) []string {
	urls := make([]string, 0, len(records))
	for _, rec := range records {
		urls = append(urls, rec.URL)
	}
	return urls
}

func echoExtract(target models.CrawlTarget, el scraper.Element) (models.ExtractedRecord, error) {
	return models.ExtractedRecord{Account: target.Account, URL: target.URL, PostText: el.HTML}, nil
}

func newPipeline(session scraper.Session) *Orchestrator {
	crawler := scraper.NewCrawler(session, "article", echoExtract, time.Second, 50*time.Millisecond, zerolog.Nop())
	return NewOrchestrator(NewSequencer(crawler, 0, 0, zerolog.Nop()), 0, zerolog.Nop())
}

func TestRunAccountPreservesOrder(t *testing.T) {
	crawler := &MockCrawler{}
	s := NewSequencer(crawler, 0, 0, zerolog.Nop())

	records, failures := s.RunAccount(context.Background(), "alice", []string{"u1", "u2", "u3", "u1"})

	assert.Empty(t, failures)
	assert.Equal(t, []string{"u1", "u2", "u3", "u1"}, urlsOf(records))
	assert.Equal(t, []string{"u1", "u2", "u3", "u1"}, crawler.visits)
}

func TestRunAccountContinuesPastPageFailure(t *testing.T) {
	target := models.CrawlTarget{Account: "alice", URL: "u2"}
	crawler := &MockCrawler{errs: map[string]error{
		"u2": models.NewCrawlFailure(target, models.CauseNavigation, errors.New("timeout")),
	}}
	s := NewSequencer(crawler, 0, 0, zerolog.Nop())

	records, failures := s.RunAccount(context.Background(), "alice", []string{"u1", "u2", "u3"})

	assert.Equal(t, []string{"u1", "u3"}, urlsOf(records))
	require.Len(t, failures, 1)
	assert.Equal(t, target, failures[0].Target)
	assert.Equal(t, models.CauseNavigation, failures[0].Cause)
	assert.Equal(t, []string{"u1", "u2", "u3"}, crawler.visits)
}

func TestRunAccountWrapsUntypedErrors(t *testing.T) {
	crawler := &MockCrawler{errs: map[string]error{"u1": errors.New("weird")}}
	s := NewSequencer(crawler, 0, 0, zerolog.Nop())

	_, failures := s.RunAccount(context.Background(), "alice", []string{"u1"})

	require.Len(t, failures, 1)
	assert.Equal(t, models.CauseExtraction, failures[0].Cause)
	assert.Equal(t, "weird", failures[0].Message)
}

func TestRunAccountStopsOnSessionFailure(t *testing.T) {
	broken := errors.New("browser gone")
	crawler := &MockCrawler{errs: map[string]error{
		"u2": models.NewCrawlFailure(models.CrawlTarget{Account: "alice", URL: "u2"}, models.CauseSession, broken),
	}}
	s := NewSequencer(crawler, 0, 0, zerolog.Nop())

	records, failures := s.RunAccount(context.Background(), "alice", []string{"u1", "u2", "u3", "u4"})

	assert.Equal(t, []string{"u1"}, urlsOf(records))
	assert.Equal(t, []string{"u1", "u2"}, crawler.visits)
	require.Len(t, failures, 3)
	for i, url := range []string{"u2", "u3", "u4"} {
		assert.Equal(t, url, failures[i].Target.URL)
		assert.Equal(t, models.CauseSession, failures[i].Cause)
		assert.ErrorIs(t, &failures[i], broken)
	}
}

func TestRunAccountCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	crawler := &MockCrawler{}
	s := NewSequencer(crawler, 0, 0, zerolog.Nop())

	records, failures := s.RunAccount(ctx, "alice", []string{"u1", "u2"})

	assert.Empty(t, records)
	assert.Empty(t, crawler.visits)
	require.Len(t, failures, 2)
	assert.Equal(t, models.CauseCanceled, failures[0].Cause)
	assert.Equal(t, models.CauseCanceled, failures[1].Cause)
}

func TestRunAccountPageInterval(t *testing.T) {
	s := NewSequencer(&MockCrawler{}, 0, 30*time.Millisecond, zerolog.Nop())

	start := time.Now()
	records, _ := s.RunAccount(context.Background(), "alice", []string{"u1", "u2", "u3"})

	assert.Len(t, records, 3)
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestRunAccountPageTimeout(t *testing.T) {
	session := scrapertest.NewSession(map[string]scrapertest.Behavior{
		"slow": {
			HTML: "<article/>",
			OnNavigate: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
		"fast": {HTML: "<article/>"},
	})
	crawler := scraper.NewCrawler(session, "article", echoExtract, time.Minute, time.Minute, zerolog.Nop())
	s := NewSequencer(crawler, 20*time.Millisecond, 0, zerolog.Nop())

	records, failures := s.RunAccount(context.Background(), "alice", []string{"slow", "fast"})

	assert.Equal(t, []string{"fast"}, urlsOf(records))
	require.Len(t, failures, 1)
	assert.Equal(t, models.CauseNavigation, failures[0].Cause)
	assert.Equal(t, 2, session.Closed())
}

func TestOrchestratorScenario(t *testing.T) {
	session := scrapertest.NewSession(map[string]scrapertest.Behavior{
		"u1": {HTML: "<article>1</article>"},
		// u2 never shows the selector
		"u3": {HTML: "<article>3</article>"},
	})

	fresh, failures := newPipeline(session).Run(context.Background(), map[string][]string{
		"alice": {"u1", "u2"},
		"bob":   {"u3"},
	})

	assert.ElementsMatch(t, []string{"u1", "u3"}, urlsOf(fresh.Posts))
	require.Len(t, failures, 1)
	assert.Equal(t, models.CrawlTarget{Account: "alice", URL: "u2"}, failures[0].Target)
	assert.Equal(t, models.CauseSelectorTimeout, failures[0].Cause)
	assert.Equal(t, session.Opened(), session.Closed())
}

func TestOrchestratorRunsAccountsConcurrently(t *testing.T) {
	bobStarted := make(chan struct{})
	session := scrapertest.NewSession(map[string]scrapertest.Behavior{
		"a1": {
			HTML: "<article/>",
			// blocks until bob is rendering, which only happens if accounts overlap
			OnNavigate: func(ctx context.Context) error {
				select {
				case <-bobStarted:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		"a2": {HTML: "<article/>"},
		"b1": {
			HTML: "<article/>",
			OnNavigate: func(context.Context) error {
				close(bobStarted)
				return nil
			},
		},
	})

	fresh, failures := newPipeline(session).Run(context.Background(), map[string][]string{
		"alice": {"a1", "a2"},
		"bob":   {"b1"},
	})

	assert.Empty(t, failures)
	assert.Equal(t, []string{"a1", "a2", "b1"}, urlsOf(fresh.Posts))
}

func TestOrchestratorSequentialWithinAccount(t *testing.T) {
	pages := map[string]scrapertest.Behavior{}
	targets := map[string][]string{}
	for _, account := range []string{"alice", "bob", "carol"} {
		for i := 0; i < 4; i++ {
			url := fmt.Sprintf("%s-%d", account, i)
			pages[url] = scrapertest.Behavior{HTML: "<article/>"}
			targets[account] = append(targets[account], url)
		}
	}
	session := scrapertest.NewSession(pages)

	fresh, failures := newPipeline(session).Run(context.Background(), targets)
	require.Empty(t, failures)
	require.Len(t, fresh.Posts, 12)

	// per account, the output order matches the input order
	byAccount := map[string][]string{}
	for _, rec := range fresh.Posts {
		byAccount[rec.Account] = append(byAccount[rec.Account], rec.URL)
	}
	assert.Equal(t, targets, byAccount)

	// a page of an account is closed before the next one of that account navigates
	events := session.Events()
	for account, urls := range targets {
		for i := 1; i < len(urls); i++ {
			closePrev := indexOf(events, "close:"+urls[i-1])
			navNext := indexOf(events, "navigate:"+urls[i])
			assert.Less(t, closePrev, navNext, "account %s overlapped pages", account)
		}
	}
}

func TestOrchestratorFailureIsolatedToAccount(t *testing.T) {
	runner := &MockCrawler{errs: map[string]error{
		"a1": models.NewCrawlFailure(models.CrawlTarget{Account: "alice", URL: "a1"}, models.CauseExtraction, errors.New("bad")),
	}}
	o := NewOrchestrator(NewSequencer(runner, 0, 0, zerolog.Nop()), 1, zerolog.Nop())

	fresh, failures := o.Run(context.Background(), map[string][]string{
		"alice": {"a1", "a2"},
		"bob":   {"b1", "b2"},
	})

	assert.Equal(t, []string{"a2", "b1", "b2"}, urlsOf(fresh.Posts))
	require.Len(t, failures, 1)
	assert.Equal(t, "a1", failures[0].Target.URL)
}

func TestOrchestratorEmpty(t *testing.T) {
	fresh, failures := newPipeline(scrapertest.NewSession(nil)).Run(context.Background(), nil)

	assert.NotNil(t, fresh.Posts)
	assert.Empty(t, fresh.Posts)
	assert.Empty(t, failures)
}

func indexOf(events []string, event string) int {
	for i, e := range events {
		if e == event {
			return i
		}
	}
	return -1
}
