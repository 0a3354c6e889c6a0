package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session value under its own key so that Take can be
// a single GETDEL, which is what gives the stream handoff its exactly-once
// consumption guarantee.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(sid, key string) string {
	return fmt.Sprintf("session:%s:%s", sid, key)
}

func (s *RedisStore) Get(ctx context.Context, sid, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, redisKey(sid, key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, key string, val []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, redisKey(sid, key), val, ttl).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, sid, key string) ([]byte, error) {
	val, err := s.client.GetDel(ctx, redisKey(sid, key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoValue
	}
	if err != nil {
		return nil, fmt.Errorf("session take: %w", err)
	}
	return val, nil
}

func (s *RedisStore) Delete(ctx context.Context, sid, key string) error {
	if err := s.client.Del(ctx, redisKey(sid, key)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
