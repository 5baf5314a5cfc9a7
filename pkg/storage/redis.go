package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps the token pair in Redis under two fixed keys
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(config Config) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: config.RedisPrefix,
	}, nil
}

func (s *RedisStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + ":" + name
}

// Get implements Store.Get
func (s *RedisStore) Get(ctx context.Context, kind Kind) (string, error) {
	name, err := kind.Key()
	if err != nil {
		return "", err
	}

	value, err := s.client.Get(ctx, s.key(name)).Result()
	if err == redis.Nil {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

// Set implements Store.Set. Both keys are written in one MULTI/EXEC transaction.
func (s *RedisStore) Set(ctx context.Context, access, refresh string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(AccessTokenKey), access, 0)
		pipe.Set(ctx, s.key(RefreshTokenKey), refresh, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set tokens failed: %w", err)
	}
	return nil
}

// SetAccess implements Store.SetAccess
func (s *RedisStore) SetAccess(ctx context.Context, access string) error {
	if err := s.client.Set(ctx, s.key(AccessTokenKey), access, 0).Err(); err != nil {
		return fmt.Errorf("redis set access token failed: %w", err)
	}
	return nil
}

// Clear implements Store.Clear
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(AccessTokenKey), s.key(RefreshTokenKey)).Err(); err != nil {
		return fmt.Errorf("redis clear tokens failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
