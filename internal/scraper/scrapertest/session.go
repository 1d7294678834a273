// Package scrapertest provides an in-memory scraper.Session for tests.
package scrapertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/williampepple1/post-crawler/internal/scraper"
)

// ErrNoSelector is returned by WaitForSelector for pages without HTML
var ErrNoSelector = errors.New("selector not found")

// Behavior scripts how a page for one URL behaves
type Behavior struct {
	HTML        string
	NavigateErr error
	EvaluateErr error
	CloseErr    error
	// OnNavigate runs before navigation completes; a non-nil error fails it
	OnNavigate func(ctx context.Context) error
	// OnEvaluate runs before the element is returned; a non-nil error fails it
	OnEvaluate func(ctx context.Context) error
}

// Session is a scripted scraper.Session. Pages are keyed by URL; unknown
// URLs navigate fine but never match the selector.
type Session struct {
	Pages   map[string]Behavior
	OpenErr error

	mu     sync.Mutex
	opened int
	closed int
	events []string
}

var _ scraper.Session = (*Session)(nil)

// NewSession creates a session with the given page scripts
func NewSession(pages map[string]Behavior) *Session {
	return &Session{Pages: pages}
}

// OpenPage returns a new scripted page
func (s *Session) OpenPage(ctx context.Context) (scraper.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.opened++
	return &Page{session: s}, nil
}

// Close is a no-op
func (s *Session) Close() error {
	return nil
}

// Opened returns how many pages were opened
func (s *Session) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Closed returns how many pages were closed
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Events returns "navigate:<url>" and "close:<url>" entries in the order they happened
func (s *Session) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *Session) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *Session) behavior(url string) (Behavior, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Pages[url]
	return b, ok
}

// Page is a scripted scraper.Page
type Page struct {
	session *Session
	url     string
	closed  bool
}

// Navigate records the visit and applies the URL's script
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.url = url
	p.session.record("navigate:" + url)

	b, _ := p.session.behavior(url)
	if b.OnNavigate != nil {
		if err := b.OnNavigate(ctx); err != nil {
			return err
		}
	}
	if b.NavigateErr != nil {
		return b.NavigateErr
	}
	return ctx.Err()
}

// WaitForSelector succeeds only for scripted pages with HTML
func (p *Page) WaitForSelector(ctx context.Context, selector string) error {
	b, ok := p.session.behavior(p.url)
	if !ok || b.HTML == "" {
		return fmt.Errorf("waiting for %q: %w", selector, ErrNoSelector)
	}
	return ctx.Err()
}

// Evaluate returns the scripted HTML
func (p *Page) Evaluate(ctx context.Context, selector string) (scraper.Element, error) {
	b, _ := p.session.behavior(p.url)
	if b.OnEvaluate != nil {
		if err := b.OnEvaluate(ctx); err != nil {
			return scraper.Element{}, err
		}
	}
	if b.EvaluateErr != nil {
		return scraper.Element{}, b.EvaluateErr
	}
	return scraper.Element{DocumentURL: p.url, HTML: b.HTML}, nil
}

// Close records the release; closing twice is an error
func (p *Page) Close() error {
	if p.closed {
		return errors.New("page already closed")
	}
	p.closed = true

	p.session.mu.Lock()
	p.session.closed++
	p.session.events = append(p.session.events, "close:"+p.url)
	p.session.mu.Unlock()

	b, _ := p.session.behavior(p.url)
	return b.CloseErr
}
