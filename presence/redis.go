package presence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentshim/config"
	"github.com/hupe1980/agentshim/core"
)

// RedisStore implements core.PresenceStore with SETEX/GET/DEL and set
// commands on a Redis server.
type RedisStore struct {
	client redis.UniversalClient
	owned  bool
}

// NewRedisStore wraps an existing client. Close does not close it.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedisStore opens a dedicated client on cfg. Close closes it.
func OpenRedisStore(cfg config.BrokerConfig) *RedisStore {
	return &RedisStore{client: cfg.NewRedisClient(), owned: true}
}

// SetEx stores value under key with ttl.
func (s *RedisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.SetEx(ctx, key, value, ttl).Err()
}

// Get returns the value or core.ErrKeyNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrKeyNotFound
	}
	return raw, err
}

// Del removes key.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// SAdd adds member to set.
func (s *RedisStore) SAdd(ctx context.Context, set, member string) error {
	return s.client.SAdd(ctx, set, member).Err()
}

// SRem removes member from set.
func (s *RedisStore) SRem(ctx context.Context, set, member string) error {
	return s.client.SRem(ctx, set, member).Err()
}

// SMembers lists the set.
func (s *RedisStore) SMembers(ctx context.Context, set string) ([]string, error) {
	return s.client.SMembers(ctx, set).Result()
}

// TTL returns the remaining lifetime, -1 for keys without expiry, or
// core.ErrKeyNotFound.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	switch d {
	case -2:
		return 0, core.ErrKeyNotFound
	case -1:
		return -1, nil
	}
	return d, nil
}

// Close closes the client if this store opened it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
