package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// FileStore keeps one JSON file per key in a directory
type FileStore struct {
	Dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.Dir, name+".json")
}

// Load reads the result set stored under key
func (s *FileStore) Load(ctx context.Context, key string) (*models.ResultSet, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, loadErr(key, err)
	}

	rs, err := decode(data)
	if err != nil {
		return nil, loadErr(key, err)
	}
	return rs, nil
}

// Save writes the result set through a temporary file so a crash never leaves half a record
func (s *FileStore) Save(ctx context.Context, key string, rs models.ResultSet) error {
	data, err := encode(rs)
	if err != nil {
		return saveErr(key, err)
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return saveErr(key, err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".tmp-*")
	if err != nil {
		return saveErr(key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return saveErr(key, err)
	}
	if err := tmp.Close(); err != nil {
		return saveErr(key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return saveErr(key, err)
	}
	return nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}
