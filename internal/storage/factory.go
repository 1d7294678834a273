package storage

import (
	"fmt"

	"github.com/williampepple1/post-crawler/internal/config"
)

// New creates the store selected by the configuration
func New(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case config.StorageFile:
		return NewFileStore(cfg.File.Dir), nil
	case config.StorageRedis:
		return NewRedisStore(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Password, cfg.Redis.Prefix), nil
	case config.StorageKVStore:
		return NewKVStore(cfg.KVStore.BaseURL, cfg.KVStore.StoreID, cfg.KVStore.StoreName, cfg.KVStore.Token, cfg.KVStore.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
