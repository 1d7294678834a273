package models

import (
	"fmt"
	"time"
)

// CrawlTarget is one URL to visit on behalf of an account
type CrawlTarget struct {
	Account string `json:"account"`
	URL     string `json:"url"`
}

// ExtractedRecord is the record produced from one rendered page.
// The JSON keys match the records already held in the result store.
type ExtractedRecord struct {
	Account   string `json:"account"`
	Handle    string `json:"handle,omitempty"`
	URL       string `json:"url"`
	PostText  string `json:"post-text"`
	Timestamp string `json:"date/time"`
}

// FailureCause classifies why a target produced no record
type FailureCause string

const (
	// CauseNavigation means the page could not be loaded or never went network idle
	CauseNavigation FailureCause = "navigation"
	// CauseSelectorTimeout means the extraction selector never appeared
	CauseSelectorTimeout FailureCause = "selector-timeout"
	// CauseExtraction means the extraction function failed on the matched element
	CauseExtraction FailureCause = "extraction"
	// CauseSession means the browser session could not provide a page
	CauseSession FailureCause = "session"
	// CauseCanceled means the run was canceled before the target was attempted
	CauseCanceled FailureCause = "canceled"
)

// CrawlFailure records a target that produced no record
type CrawlFailure struct {
	Target  CrawlTarget  `json:"target"`
	Cause   FailureCause `json:"cause"`
	Message string       `json:"error,omitempty"`
	Err     error        `json:"-"`
}

// NewCrawlFailure creates a failure for target with the given cause
func NewCrawlFailure(target CrawlTarget, cause FailureCause, err error) *CrawlFailure {
	f := &CrawlFailure{
		Target: target,
		Cause:  cause,
		Err:    err,
	}
	if err != nil {
		f.Message = err.Error()
	}
	return f
}

// Error implements the error interface
func (f *CrawlFailure) Error() string {
	if f.Message != "" {
		return fmt.Sprintf("[%s] %s %s: %s", f.Cause, f.Target.Account, f.Target.URL, f.Message)
	}
	return fmt.Sprintf("[%s] %s %s", f.Cause, f.Target.Account, f.Target.URL)
}

// Unwrap returns the underlying error
func (f *CrawlFailure) Unwrap() error {
	return f.Err
}

// ResultSet is the persisted collection of records
type ResultSet struct {
	Posts []ExtractedRecord `json:"posts"`
}

// Summary reports the outcome of one run
type Summary struct {
	RunID      string         `json:"run_id"`
	Accounts   int            `json:"accounts"`
	Targets    int            `json:"targets"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Persisted  int            `json:"persisted"`
	Failures   []CrawlFailure `json:"failures,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Duration returns how long the run took
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
