package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrBufferFull is returned when the in-memory buffer cannot accept more
// records.
var ErrBufferFull = errors.New("audit buffer full")

// buffer stages encoded records between the request path and the flush
// worker.
type buffer interface {
	push(ctx context.Context, data []byte) error
	pop(ctx context.Context, max int) ([][]byte, error)
}

// memoryBuffer is a bounded channel buffer for single-process deployments.
type memoryBuffer struct {
	ch chan []byte
}

func newMemoryBuffer(size int) *memoryBuffer {
	return &memoryBuffer{ch: make(chan []byte, size)}
}

func (b *memoryBuffer) push(ctx context.Context, data []byte) error {
	select {
	case b.ch <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

func (b *memoryBuffer) pop(ctx context.Context, max int) ([][]byte, error) {
	var items [][]byte
	for len(items) < max {
		select {
		case data := <-b.ch:
			items = append(items, data)
		default:
			return items, nil
		}
	}
	return items, nil
}

// redisBuffer stages records in a Redis list so multiple pods share one
// flush stream.
type redisBuffer struct {
	client *redis.Client
	key    string
}

func newRedisBuffer(client *redis.Client, key string) *redisBuffer {
	return &redisBuffer{client: client, key: key}
}

func (b *redisBuffer) push(ctx context.Context, data []byte) error {
	if err := b.client.RPush(ctx, b.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push audit record: %w", err)
	}
	return nil
}

func (b *redisBuffer) pop(ctx context.Context, max int) ([][]byte, error) {
	values, err := b.client.LPopCount(ctx, b.key, max).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop audit records: %w", err)
	}

	items := make([][]byte, 0, len(values))
	for _, v := range values {
		items = append(items, []byte(v))
	}
	return items, nil
}
