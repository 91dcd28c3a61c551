package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrQueueEmpty is returned by Dequeue when nothing arrived before the
// timeout elapsed.
var ErrQueueEmpty = errors.New("queue empty")

// Queue is a FIFO work queue of opaque messages.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// redisQueue stores messages in a Redis list: LPUSH on enqueue, BRPOP on
// dequeue.
type redisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue connects to Redis and returns a list backed queue under key.
func NewRedisQueue(addr, password string, db int, key string) (Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisQueue{client: client, key: key}, nil
}

func (q *redisQueue) Enqueue(ctx context.Context, payload []byte) error {
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push message: %w", err)
	}
	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("failed to pop message: %w", err)
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	return []byte(res[1]), nil
}

func (q *redisQueue) Close() error {
	return q.client.Close()
}
