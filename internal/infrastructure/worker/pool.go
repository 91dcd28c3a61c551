package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrPoolStopped is returned by Enqueue after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Job represents a task to be executed by a worker
type Job interface {
	Process(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Process(ctx context.Context) error { return f(ctx) }

// Pool is a fixed set of goroutines draining a bounded job queue.
type Pool struct {
	workers    int
	jobTimeout time.Duration
	jobQueue   chan Job
	logger     *zap.Logger

	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

// NewPool creates a new worker pool. jobTimeout bounds each Process call;
// zero means no bound.
func NewPool(workers, queueSize int, jobTimeout time.Duration, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:    workers,
		jobTimeout: jobTimeout,
		jobQueue:   make(chan Job, queueSize),
		logger:     logger,
		quit:       make(chan struct{}),
	}
}

// Start starts the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("Worker pool started",
		zap.Int("workers", p.workers),
		zap.Int("queue_size", cap(p.jobQueue)))
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobQueue:
			p.run(id, job)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) run(id int, job Job) {
	ctx := context.Background()
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker job panicked",
				zap.Int("worker", id),
				zap.Any("panic", r))
		}
	}()

	if err := job.Process(ctx); err != nil {
		p.logger.Error("Worker job failed",
			zap.Int("worker", id),
			zap.Error(err))
	}
}

// Enqueue blocks until the job is queued, ctx is done or the pool stops.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-p.quit:
		return ErrPoolStopped
	default:
	}

	select {
	case p.jobQueue <- job:
		return nil
	case <-p.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue queues job without blocking and reports whether it was
// accepted.
func (p *Pool) TryEnqueue(job Job) bool {
	select {
	case <-p.quit:
		return false
	default:
	}

	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	return len(p.jobQueue)
}

// Stop stops the workers and waits for running jobs to finish. Jobs still
// queued are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
		p.logger.Info("Worker pool stopped", zap.Int("dropped", len(p.jobQueue)))
	})
}
