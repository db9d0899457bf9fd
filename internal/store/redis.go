package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one string value per key.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(addr, prefix string, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return newRedisStoreWithClient(rdb, prefix, ttl)
}

func newRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultConfig().RedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Backend() string { return BackendRedis }

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) redisKey(key Key) string {
	return s.prefix + key.Username + ":" + key.Action
}

func (s *RedisStore) Persist(ctx context.Context, key Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.redisKey(key), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failure: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	out, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.redisKey(key))
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failure: %w", err)
	}
	return out, nil
}
