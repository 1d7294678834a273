package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// ErrPersistence matches every error returned by a Store
var ErrPersistence = errors.New("persistence failure")

// Store persists result sets under a key
type Store interface {
	// Load returns nil and no error when nothing is stored under key
	Load(ctx context.Context, key string) (*models.ResultSet, error)
	Save(ctx context.Context, key string, rs models.ResultSet) error
	Close() error
}

// Error describes a failed load or save
type Error struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrPersistence as a match
func (e *Error) Is(target error) bool {
	return target == ErrPersistence
}

func loadErr(key string, err error) error {
	return &Error{Op: "load", Key: key, Err: err}
}

func saveErr(key string, err error) error {
	return &Error{Op: "save", Key: key, Err: err}
}

// decode parses a stored record. A record without a posts list counts as absent.
func decode(data []byte) (*models.ResultSet, error) {
	var body struct {
		Posts *[]models.ExtractedRecord `json:"posts"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decode result set: %w", err)
	}
	if body.Posts == nil {
		return nil, nil
	}
	return &models.ResultSet{Posts: *body.Posts}, nil
}

func encode(rs models.ResultSet) ([]byte, error) {
	if rs.Posts == nil {
		rs.Posts = []models.ExtractedRecord{}
	}
	return json.MarshalIndent(rs, "", "  ")
}
