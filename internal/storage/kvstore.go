package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// KVStore persists result sets as records of a remote key-value store
// (the job platform's /v2/key-value-stores API).
type KVStore struct {
	baseURL   string
	storeID   string
	storeName string
	token     string
	client    *http.Client

	resolveOnce sync.Once
	resolveErr  error
}

// NewKVStore creates a key-value store client. When storeID is empty the
// store is looked up, and created if needed, by storeName on first use.
func NewKVStore(baseURL, storeID, storeName, token string, timeout time.Duration) *KVStore {
	return &KVStore{
		baseURL:   strings.TrimRight(baseURL, "/"),
		storeID:   storeID,
		storeName: storeName,
		token:     token,
		client:    &http.Client{Timeout: timeout},
	}
}

// resolve finds the store id for a named store
func (s *KVStore) resolve(ctx context.Context) error {
	s.resolveOnce.Do(func() {
		if s.storeID != "" {
			return
		}

		endpoint := fmt.Sprintf("%s/v2/key-value-stores?name=%s", s.baseURL, url.QueryEscape(s.storeName))
		resp, err := s.do(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			s.resolveErr = err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			s.resolveErr = fmt.Errorf("get or create store %q: status %d", s.storeName, resp.StatusCode)
			return
		}

		var body struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			s.resolveErr = fmt.Errorf("decode store: %w", err)
			return
		}
		if body.Data.ID == "" {
			s.resolveErr = fmt.Errorf("store %q has no id", s.storeName)
			return
		}
		s.storeID = body.Data.ID
	})
	return s.resolveErr
}

func (s *KVStore) recordURL(key string) string {
	return fmt.Sprintf("%s/v2/key-value-stores/%s/records/%s", s.baseURL, url.PathEscape(s.storeID), url.PathEscape(key))
}

func (s *KVStore) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	return s.client.Do(req)
}

// Load fetches the record stored under key
func (s *KVStore) Load(ctx context.Context, key string) (*models.ResultSet, error) {
	if err := s.resolve(ctx); err != nil {
		return nil, loadErr(key, err)
	}

	resp, err := s.do(ctx, http.MethodGet, s.recordURL(key), nil)
	if err != nil {
		return nil, loadErr(key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, loadErr(key, fmt.Errorf("status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, loadErr(key, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	rs, err := decode(data)
	if err != nil {
		return nil, loadErr(key, err)
	}
	return rs, nil
}

// Save replaces the record stored under key
func (s *KVStore) Save(ctx context.Context, key string, rs models.ResultSet) error {
	if err := s.resolve(ctx); err != nil {
		return saveErr(key, err)
	}

	data, err := encode(rs)
	if err != nil {
		return saveErr(key, err)
	}

	resp, err := s.do(ctx, http.MethodPut, s.recordURL(key), data)
	if err != nil {
		return saveErr(key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return saveErr(key, fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// Close releases idle connections
func (s *KVStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
