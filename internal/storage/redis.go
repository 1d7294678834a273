package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// RedisStore keeps each result set as one JSON string value
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(addr string, db int, password, prefix string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})

	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load reads the result set stored under key
func (s *RedisStore) Load(ctx context.Context, key string) (*models.ResultSet, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
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

// Save replaces the value stored under key
func (s *RedisStore) Save(ctx context.Context, key string, rs models.ResultSet) error {
	data, err := encode(rs)
	if err != nil {
		return saveErr(key, err)
	}
	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return saveErr(key, err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
