package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/worker"
	"go.uber.org/zap"
)

// JobQueue is the part of worker.Pool the dispatcher needs.
type JobQueue interface {
	TryEnqueue(job worker.Job) bool
}

// SweepConfig tunes outbox recovery.
type SweepConfig struct {
	StaleAfter time.Duration
	Interval   time.Duration
	Batch      int
}

// Dispatcher hands received records to the worker pool. webhook_logs is
// the outbox: a record the pool could not take, or whose worker died,
// stays in received or processing and is found again by Sweep.
type Dispatcher struct {
	queue     JobQueue
	processor RecordProcessor
	logs      repository.WebhookLogRepository
	sweep     SweepConfig
	now       func() time.Time
	logger    *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(queue JobQueue, processor RecordProcessor, logs repository.WebhookLogRepository, sweep SweepConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:     queue,
		processor: processor,
		logs:      logs,
		sweep:     sweep,
		now:       time.Now,
		logger:    logger,
	}
}

// Dispatch queues the record without blocking and reports whether the pool
// accepted it.
func (d *Dispatcher) Dispatch(logID uuid.UUID) bool {
	return d.enqueue(logID, worker.JobFunc(func(ctx context.Context) error {
		return d.processor.Process(ctx, logID)
	}))
}

// dispatchReclaimed queues a processing record whose reclaim this
// dispatcher won. Only that job may run it.
func (d *Dispatcher) dispatchReclaimed(logID uuid.UUID) bool {
	return d.enqueue(logID, worker.JobFunc(func(ctx context.Context) error {
		return d.processor.Resume(ctx, logID)
	}))
}

func (d *Dispatcher) enqueue(logID uuid.UUID, job worker.Job) bool {
	if d.queue.TryEnqueue(job) {
		return true
	}

	metrics.DispatchRejected.Inc()
	d.logger.Warn("Worker queue full, leaving webhook for the sweeper",
		zap.String("log_id", logID.String()))
	return false
}

// Sweep re-dispatches records stuck in received or processing. A received
// record may end up queued twice; the claim in Process lets only one job
// run it. A processing record is only taken after winning the reclaim, and
// only the job created for that reclaim resumes it.
func (d *Dispatcher) Sweep(ctx context.Context) (int, error) {
	before := d.now().Add(-d.sweep.StaleAfter)

	stale, err := d.logs.ListStale(ctx, before, d.sweep.Batch)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale webhook logs: %w", err)
	}

	dispatched := 0
	for _, rec := range stale {
		var queued bool
		if rec.Status == model.WebhookLogProcessing {
			won, err := d.logs.Reclaim(ctx, rec.ID, before)
			if err != nil {
				return dispatched, fmt.Errorf("failed to reclaim webhook log: %w", err)
			}
			if !won {
				continue
			}
			queued = d.dispatchReclaimed(rec.ID)
		} else {
			queued = d.Dispatch(rec.ID)
		}
		if !queued {
			break
		}
		dispatched++
	}

	if dispatched > 0 {
		metrics.SweptRecords.Add(float64(dispatched))
		d.logger.Info("Re-dispatched stale webhooks",
			zap.Int("count", dispatched),
			zap.Time("stale_before", before))
	}
	return dispatched, nil
}

// RunSweeper sweeps once immediately, to pick up whatever a previous
// process left behind, then on every interval until ctx is done.
func (d *Dispatcher) RunSweeper(ctx context.Context) {
	interval := d.sweep.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.Sweep(ctx); err != nil {
			d.logger.Error("Outbox sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
