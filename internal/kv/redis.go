package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Expiry is delegated to Redis,
// so no janitor is needed.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis server at addr and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (s *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return stored, nil
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Time, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("redis pexpire: %w", err)
		}
		return count, timeNow().Add(ttl), nil
	}
	remaining, err := s.client.PTTL(ctx, key).Result()
	if err != nil || remaining < 0 {
		// PTTL reports a negative duration for keys without expiry; treat the
		// window as freshly started rather than failing the request.
		remaining = ttl
	}
	return count, timeNow().Add(remaining), nil
}

// Close releases the underlying connection pool.
func (s *Redis) Close() error {
	return s.client.Close()
}
