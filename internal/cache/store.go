package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/shelfwise/internal/config"
	"github.com/redis/go-redis/v9"
)

// Store is a byte oriented key/value backend with per-key expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// NewStore builds the backend named by CACHE_BACKEND
func NewStore(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		client, err := NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client), nil
	case "none", "noop", "disabled":
		return NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

type redisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing redis client
func NewRedisStore(client redis.UniversalClient) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return payload, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (s *redisStore) DeletePrefix(ctx context.Context, prefix string) error {
	return deleteKeysWithPrefix(ctx, s.client, prefix, scanBatchSize)
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

type noopStore struct{}

// NewNoopStore never stores anything
func NewNoopStore() Store {
	return &noopStore{}
}

func (n *noopStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (n *noopStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (n *noopStore) Delete(ctx context.Context, keys ...string) error {
	return nil
}

func (n *noopStore) DeletePrefix(ctx context.Context, prefix string) error {
	return nil
}

func (n *noopStore) Close() error {
	return nil
}
