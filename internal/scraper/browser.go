package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/williampepple1/post-crawler/internal/config"
	"github.com/williampepple1/post-crawler/internal/proxy"
)

// ErrSessionClosed is returned by OpenPage after Close
var ErrSessionClosed = errors.New("browser session closed")

// BrowserSession drives one headless Chrome process; each page is a tab
type BrowserSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	proxy         *proxy.Manager
	log           zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewBrowserSession launches the browser. The returned session must be closed.
func NewBrowserSession(ctx context.Context, cfg *config.BrowserConfig, proxies *proxy.Manager, log zerolog.Logger) (*BrowserSession, error) {
	// Configure browser options
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	server, err := proxies.ServerFlag()
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	if server != "" {
		opts = append(opts, chromedp.ProxyServer(server))
		log.Info().Str("proxy", server).Msg("Using proxy server")
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so that concurrent OpenPage calls only open tabs
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	log.Info().Bool("headless", cfg.Headless).Msg("Browser launched")

	return &BrowserSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		proxy:         proxies,
		log:           log,
	}, nil
}

// OpenPage opens a new tab
func (s *BrowserSession) OpenPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	p := &browserPage{
		ctx:    tabCtx,
		cancel: cancel,
		idle:   make(chan cdp.LoaderID, 32),
	}

	chromedp.ListenTarget(tabCtx, p.onEvent)

	actions := []chromedp.Action{page.SetLifecycleEventsEnabled(true)}
	if user, pass, ok := s.proxy.Credentials(); ok {
		p.auth = &fetch.AuthChallengeResponse{
			Response: fetch.AuthChallengeResponseResponseProvideCredentials,
			Username: user,
			Password: pass,
		}
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	return p, nil
}

// Close shuts the browser down, closing any tab still open
func (s *BrowserSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.browserCtx)
	s.browserCancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	s.log.Info().Msg("Browser closed")
	return nil
}

// browserPage is one chromedp tab
type browserPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	// idle receives the loader id of every networkIdle lifecycle event
	idle chan cdp.LoaderID
	auth *fetch.AuthChallengeResponse
}

// onEvent runs on the chromedp event loop and must not block
func (p *browserPage) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventLifecycleEvent:
		if e.Name != "networkIdle" {
			return
		}
		select {
		case p.idle <- e.LoaderID:
		default:
		}
	case *fetch.EventAuthRequired:
		if p.auth == nil {
			return
		}
		go func() {
			_ = chromedp.Run(p.ctx, fetch.ContinueWithAuth(e.RequestID, p.auth))
		}()
	case *fetch.EventRequestPaused:
		go func() {
			_ = chromedp.Run(p.ctx, fetch.ContinueRequest(e.RequestID))
		}()
	}
}

// bind derives an operation context from the tab that also ends with ctx.
// Cancelling it aborts the operation without closing the tab.
func (p *browserPage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		opCtx  context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		opCtx, cancel = context.WithDeadline(p.ctx, deadline)
	} else {
		opCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// Navigate loads url and waits for the navigation's networkIdle event
func (p *browserPage) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := p.bind(ctx)
	defer cancel()

	var loaderID cdp.LoaderID
	err := chromedp.Run(opCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, id, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		loaderID = id
		return nil
	}))
	if err != nil {
		return err
	}

	for {
		select {
		case id := <-p.idle:
			// idle events of earlier documents are skipped
			if id == loaderID || loaderID == "" {
				return nil
			}
		case <-opCtx.Done():
			return fmt.Errorf("waiting for network idle: %w", opCtx.Err())
		}
	}
}

// WaitForSelector waits until selector matches a node
func (p *browserPage) WaitForSelector(ctx context.Context, selector string) error {
	opCtx, cancel := p.bind(ctx)
	defer cancel()

	return chromedp.Run(opCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// Evaluate snapshots the first node matching selector and the document URL
func (p *browserPage) Evaluate(ctx context.Context, selector string) (Element, error) {
	opCtx, cancel := p.bind(ctx)
	defer cancel()

	var el Element
	err := chromedp.Run(opCtx,
		chromedp.OuterHTML(selector, &el.HTML, chromedp.ByQuery),
		chromedp.Location(&el.DocumentURL),
	)
	return el, err
}

// Close closes the tab, waiting at most a few seconds for the browser
func (p *browserPage) Close() error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(p.ctx)
	}()

	select {
	case err := <-done:
		p.cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-time.After(closeTimeout):
		p.cancel()
		return fmt.Errorf("closing tab timed out after %v", closeTimeout)
	}
}

const closeTimeout = 5 * time.Second
