package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists values in Redis under a fixed key prefix.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

var _ Store = (*RedisStore)(nil)

// RedisConfig holds connection settings for NewRedisClient.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient opens a client with the given settings. The connection is
// established lazily on first use.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisStore wraps client. Every key is stored as prefix + key.
func NewRedisStore(client redis.Cmdable, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("kv: redis client is required")
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: redis get %q: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv: redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("kv: redis del %q: %w", key, err)
	}
	return nil
}
