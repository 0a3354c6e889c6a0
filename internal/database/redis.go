package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients holds the three logical redis connections the backend uses:
// one for session state, one for the publish job queue, one dedicated to
// pub/sub (a subscribed connection cannot issue regular commands).
type RedisClients struct {
	Sessions *redis.Client
	Queue    *redis.Client
	PubSub   *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessionClient := redis.NewClient(opt)
	if err := sessionClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis (sessions): %w", err)
	}

	queueOpt := *opt
	queueClient := redis.NewClient(&queueOpt)
	if err := queueClient.Ping(ctx).Err(); err != nil {
		sessionClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	pubsubOpt := *opt
	pubsubClient := redis.NewClient(&pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		sessionClient.Close()
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	return &RedisClients{
		Sessions: sessionClient,
		Queue:    queueClient,
		PubSub:   pubsubClient,
	}, nil
}

func (r *RedisClients) Close() {
	r.Sessions.Close()
	r.Queue.Close()
	r.PubSub.Close()
}
