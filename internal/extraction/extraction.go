package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/williampepple1/post-crawler/internal/config"
	"github.com/williampepple1/post-crawler/internal/scraper"
	"github.com/williampepple1/post-crawler/pkg/models"
)

// ErrMissingText is returned when the matched element has no post text container
var ErrMissingText = errors.New("post text container not found")

// Extractor handles data extraction from the matched post element
type Extractor struct {
	Config *config.ExtractionConfig
}

// NewExtractor creates a new data extractor
func NewExtractor(config *config.ExtractionConfig) *Extractor {
	return &Extractor{
		Config: config,
	}
}

// Func returns the extractor as a scraper.ExtractFunc
func (e *Extractor) Func() scraper.ExtractFunc {
	return e.Extract
}

// Extract builds a record from the element's HTML
func (e *Extractor) Extract(target models.CrawlTarget, el scraper.Element) (models.ExtractedRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(el.HTML))
	if err != nil {
		return models.ExtractedRecord{}, fmt.Errorf("parse element: %w", err)
	}

	// the fragment is wrapped in html/body by the parser
	post := doc.Find("body").Children().First()

	text := post.Find(e.Config.TextSelector)
	if text.Length() == 0 {
		return models.ExtractedRecord{}, fmt.Errorf("%s: %w", e.Config.TextSelector, ErrMissingText)
	}

	url := el.DocumentURL
	if url == "" {
		url = target.URL
	}

	handle, _ := post.Attr(e.Config.HandleAttr)

	return models.ExtractedRecord{
		Account:   target.Account,
		Handle:    handle,
		URL:       url,
		PostText:  strings.TrimSpace(text.First().Text()),
		Timestamp: strings.TrimSpace(post.Find(e.Config.TimeSelector).First().Text()),
	}, nil
}
