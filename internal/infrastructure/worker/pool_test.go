package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPool(t *testing.T) {
	var executed int32
	pool := NewPool(2, 10, time.Second, zap.NewNop())
	pool.Start()

	job := JobFunc(func(ctx context.Context) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})
	require.NoError(t, pool.Enqueue(context.Background(), job))
	require.NoError(t, pool.Enqueue(context.Background(), job))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&executed) == 2 }, time.Second, 5*time.Millisecond)
	pool.Stop()
}

func TestPool_FailingAndPanickingJobsDoNotKillWorkers(t *testing.T) {
	var executed int32
	pool := NewPool(1, 10, time.Second, zap.NewNop())
	pool.Start()
	defer pool.Stop()

	require.True(t, pool.TryEnqueue(JobFunc(func(context.Context) error { return errors.New("boom") })))
	require.True(t, pool.TryEnqueue(JobFunc(func(context.Context) error { panic("boom") })))
	require.True(t, pool.TryEnqueue(JobFunc(func(context.Context) error {
		atomic.AddInt32(&executed, 1)
		return nil
	})))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&executed) == 1 }, time.Second, 5*time.Millisecond)
}

func TestPool_TryEnqueueFull(t *testing.T) {
	// not started, so nothing drains the queue
	pool := NewPool(1, 1, 0, zap.NewNop())
	noop := JobFunc(func(context.Context) error { return nil })

	assert.True(t, pool.TryEnqueue(noop))
	assert.False(t, pool.TryEnqueue(noop))
	assert.Equal(t, 1, pool.Pending())
}

func TestPool_JobTimeout(t *testing.T) {
	done := make(chan error, 1)
	pool := NewPool(1, 1, 20*time.Millisecond, zap.NewNop())
	pool.Start()
	defer pool.Stop()

	require.True(t, pool.TryEnqueue(JobFunc(func(ctx context.Context) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
}

func TestPool_EnqueueAfterStop(t *testing.T) {
	pool := NewPool(1, 1, 0, zap.NewNop())
	pool.Start()
	pool.Stop()

	noop := JobFunc(func(context.Context) error { return nil })
	assert.ErrorIs(t, pool.Enqueue(context.Background(), noop), ErrPoolStopped)
	assert.False(t, pool.TryEnqueue(noop))
}
