package messaging

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned after Close.
var ErrQueueClosed = errors.New("queue closed")

// memoryQueue is a buffered channel queue for single process deployments
// and tests. Messages do not survive a restart.
type memoryQueue struct {
	ch        chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

// NewMemoryQueue returns an in-process queue holding up to size messages.
func NewMemoryQueue(size int) Queue {
	return &memoryQueue{
		ch:   make(chan []byte, size),
		done: make(chan struct{}),
	}
}

func (q *memoryQueue) Enqueue(ctx context.Context, payload []byte) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	msg := append([]byte(nil), payload...)
	select {
	case q.ch <- msg:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-q.ch:
		return msg, nil
	case <-timer.C:
		return nil, ErrQueueEmpty
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *memoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
