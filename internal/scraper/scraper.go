package scraper

import (
	"context"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// Session owns one browser and hands out page handles.
// OpenPage must be safe to call from several goroutines.
type Session interface {
	OpenPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browser tab. It is owned by the goroutine that opened it
// until Close is called.
type Page interface {
	// Navigate loads url and blocks until the network is idle
	Navigate(ctx context.Context, url string) error
	// WaitForSelector blocks until selector matches a node
	WaitForSelector(ctx context.Context, selector string) error
	// Evaluate snapshots the first node matching selector
	Evaluate(ctx context.Context, selector string) (Element, error)
	// Close releases the tab
	Close() error
}

// Element is a rendered snapshot of the node matched by the extraction selector
type Element struct {
	// DocumentURL is the page URL after redirects
	DocumentURL string
	HTML        string
}

// ExtractFunc turns a matched element into a record
type ExtractFunc func(target models.CrawlTarget, el Element) (models.ExtractedRecord, error)
