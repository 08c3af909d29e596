package offset

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "cursus:seen:"

// RedisStore shares seen offsets between consumer processes using SETNX.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	closer func() error
}

// NewRedisStore wraps an existing client. A zero ttl keeps keys forever.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

func DialRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	s := NewRedisStore(client, ttl)
	s.closer = client.Close
	return s, nil
}

func (s *RedisStore) MarkSeen(ctx context.Context, key Key) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key.String(), 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
