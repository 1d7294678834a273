// Package jobapi starts the upstream link-collecting job and reads the
// account to URL mapping it produces.
package jobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/williampepple1/post-crawler/internal/config"
)

// Retry tuning
const (
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// StatusError is returned for a non-2xx response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether retrying may succeed
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AccountLinks is one entry of the links record
type AccountLinks struct {
	Username   string   `json:"username" yaml:"username"`
	PostsLinks []string `json:"postsLinks" yaml:"postsLinks"`
}

// Client talks to the job execution API
type Client struct {
	cfg  config.JobAPIConfig
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates a job API client
func NewClient(cfg config.JobAPIConfig, log zerolog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// Targets runs the job and returns its account to URL mapping
func (c *Client) Targets(ctx context.Context) (map[string][]string, error) {
	storeID, err := c.StartRun(ctx)
	if err != nil {
		return nil, err
	}

	links, err := c.Links(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return ToTargets(links), nil
}

// StartRun starts the job, waits for it as long as the API allows, and
// returns the id of the run's default key-value store
func (c *Client) StartRun(ctx context.Context) (string, error) {
	input, err := json.Marshal(c.cfg.Input)
	if err != nil {
		return "", fmt.Errorf("encode job input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/runs?waitForFinish=%d",
		c.cfg.BaseURL, url.PathEscape(c.cfg.ActorID), c.cfg.WaitForFinish)

	c.log.Info().Str("actor", c.cfg.ActorID).Msg("Starting link job")

	var run struct {
		Data struct {
			ID                     string `json:"id"`
			Status                 string `json:"status"`
			DefaultKeyValueStoreID string `json:"defaultKeyValueStoreId"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, input, &run); err != nil {
		return "", fmt.Errorf("start job run: %w", err)
	}
	if run.Data.DefaultKeyValueStoreID == "" {
		return "", fmt.Errorf("job run %s returned no key-value store", run.Data.ID)
	}

	c.log.Info().
		Str("run", run.Data.ID).
		Str("status", run.Data.Status).
		Str("store", run.Data.DefaultKeyValueStoreID).
		Msg("Link job run finished")

	return run.Data.DefaultKeyValueStoreID, nil
}

// Links reads the links record from a store
func (c *Client) Links(ctx context.Context, storeID string) ([]AccountLinks, error) {
	endpoint := fmt.Sprintf("%s/v2/key-value-stores/%s/records/%s",
		c.cfg.BaseURL, url.PathEscape(storeID), url.PathEscape(c.cfg.RecordKey))

	var links []AccountLinks
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &links); err != nil {
		return nil, fmt.Errorf("read links record: %w", err)
	}

	c.log.Info().Int("accounts", len(links)).Msg("Read links record")
	return links, nil
}

// ToTargets converts the links record; links of a repeated username are
// appended in order and blank links are dropped
func ToTargets(links []AccountLinks) map[string][]string {
	targets := make(map[string][]string, len(links))
	for _, entry := range links {
		for _, link := range entry.PostsLinks {
			link = strings.TrimSpace(link)
			if link == "" {
				continue
			}
			targets[entry.Username] = append(targets[entry.Username], link)
		}
	}
	return targets
}

// doJSON performs a request with retries and decodes the JSON response into out
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialBackoffInterval
	b.MaxInterval = MaxBackoffInterval

	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)

	op := func() error {
		err := c.do(ctx, method, endpoint, body, out)
		if err == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("Job API request failed, retrying")
	}

	return backoff.RetryNotify(op, bo, notify)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method:     method,
			URL:        redact(endpoint),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// redact drops the query string, which may carry credentials
func redact(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
