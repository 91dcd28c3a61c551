package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/semo-billing-webhooks/pkg/messaging"
	"go.uber.org/zap"
)

const recoverBatch = 500

// RelayService is the standalone listener's core: it records every call in
// relay_deliveries, queues the delivery id and forwards from the queue.
type RelayService struct {
	repo      repository.RelayDeliveryRepository
	queue     messaging.Queue
	forwarder Forwarder
	logger    *zap.Logger
}

// NewRelayService creates a new relay service
func NewRelayService(repo repository.RelayDeliveryRepository, queue messaging.Queue, forwarder Forwarder, logger *zap.Logger) *RelayService {
	return &RelayService{
		repo:      repo,
		queue:     queue,
		forwarder: forwarder,
		logger:    logger,
	}
}

// Accept stores the call and queues it for forwarding. When the local
// record cannot be written the payload is forwarded straight away instead,
// so the call still reaches the main application.
func (s *RelayService) Accept(ctx context.Context, providerName string, body []byte, headers http.Header) (*model.RelayDelivery, error) {
	name := strings.ToLower(strings.TrimSpace(providerName))
	delivery := &model.RelayDelivery{
		ID:         uuid.New(),
		Provider:   name,
		RawPayload: sanitizePayload(body),
		Body:       append([]byte(nil), body...),
		Headers:    CaptureHeaders(headers),
		Status:     model.RelayQueued,
	}
	metrics.RelayAccepted.WithLabelValues(name).Inc()

	if err := s.repo.Create(ctx, delivery); err != nil {
		s.logger.Error("Failed to record relay delivery, forwarding without a record",
			zap.String("delivery_id", delivery.ID.String()),
			zap.String("provider", name),
			zap.Error(err))
		go s.forwardUnrecorded(delivery)
		return delivery, fmt.Errorf("%w: %v", domainErrors.ErrStorageUnavailable, err)
	}

	s.enqueue(ctx, delivery.ID)
	return delivery, nil
}

// Redeliver moves a forward_failed delivery back to queued and queues it.
func (s *RelayService) Redeliver(ctx context.Context, id uuid.UUID) (*model.RelayDelivery, error) {
	delivery, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrDeliveryNotFound, id)
	}

	requeued, err := s.repo.Requeue(ctx, id)
	if err != nil {
		return nil, err
	}
	if requeued {
		delivery.Status = model.RelayQueued
		s.enqueue(ctx, id)
		s.logger.Info("Relay delivery requeued", zap.String("delivery_id", id.String()))
	}
	return delivery, nil
}

// Get returns a delivery or nil.
func (s *RelayService) Get(ctx context.Context, id uuid.UUID) (*model.RelayDelivery, error) {
	return s.repo.Get(ctx, id)
}

// List returns deliveries in status, oldest first.
func (s *RelayService) List(ctx context.Context, status model.RelayDeliveryStatus, limit int) ([]*model.RelayDelivery, error) {
	return s.repo.ListByStatus(ctx, status, limit)
}

// Recover queues every delivery still marked queued. It runs at startup to
// pick up ids lost with an in-memory queue or never pushed to Redis.
func (s *RelayService) Recover(ctx context.Context) (int, error) {
	pending, err := s.repo.ListByStatus(ctx, model.RelayQueued, recoverBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list queued deliveries: %w", err)
	}
	for _, d := range pending {
		if err := s.queue.Enqueue(ctx, []byte(d.ID.String())); err != nil {
			return 0, fmt.Errorf("failed to enqueue delivery %s: %w", d.ID, err)
		}
	}
	if len(pending) > 0 {
		s.logger.Info("Requeued pending relay deliveries", zap.Int("count", len(pending)))
	}
	return len(pending), nil
}

// Run starts workers forwarding from the queue and blocks until ctx is done
// or the queue is closed.
func (s *RelayService) Run(ctx context.Context, workers int, pollTimeout time.Duration) {
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.consume(ctx, id, pollTimeout)
		}(i)
	}
	wg.Wait()
}

func (s *RelayService) consume(ctx context.Context, workerID int, pollTimeout time.Duration) {
	for {
		msg, err := s.queue.Dequeue(ctx, pollTimeout)
		switch {
		case err == nil:
		case errors.Is(err, messaging.ErrQueueEmpty):
			continue
		case errors.Is(err, messaging.ErrQueueClosed), ctx.Err() != nil:
			return
		default:
			s.logger.Error("Relay queue read failed", zap.Int("worker", workerID), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollTimeout):
			}
			continue
		}

		id, err := uuid.Parse(string(msg))
		if err != nil {
			s.logger.Warn("Dropping malformed relay queue entry", zap.ByteString("entry", msg))
			continue
		}
		if err := s.Deliver(ctx, id); err != nil {
			s.logger.Error("Relay delivery failed",
				zap.String("delivery_id", id.String()),
				zap.Error(err))
		}
	}
}

// Deliver forwards one queued delivery and records the result. Deliveries
// no longer queued are left alone.
func (s *RelayService) Deliver(ctx context.Context, id uuid.UUID) error {
	delivery, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if delivery == nil {
		return fmt.Errorf("%w: %s", domainErrors.ErrDeliveryNotFound, id)
	}
	if delivery.Status != model.RelayQueued {
		return nil
	}

	resp, fwdErr := s.forwarder.Forward(ctx, delivery)
	result := repository.ForwardResult{Status: model.RelayForwarded}
	if resp != nil && resp.Status != "" {
		result.ResponseStatus = &resp.Status
	}
	if fwdErr != nil {
		msg := fwdErr.Error()
		result.Status = model.RelayForwardFailed
		result.LastError = &msg
	}
	metrics.RelayForwards.WithLabelValues(string(result.Status)).Inc()

	// ctx may be cancelled at shutdown; the outcome is still written.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.repo.RecordAttempt(writeCtx, id, result); err != nil {
		return err
	}

	if fwdErr != nil {
		s.logger.Warn("Relay forward failed",
			zap.String("delivery_id", id.String()),
			zap.String("provider", delivery.Provider),
			zap.Error(fwdErr))
		return nil
	}
	s.logger.Info("Relay delivery forwarded",
		zap.String("delivery_id", id.String()),
		zap.String("provider", delivery.Provider))
	return nil
}

func (s *RelayService) enqueue(ctx context.Context, id uuid.UUID) {
	if err := s.queue.Enqueue(ctx, []byte(id.String())); err != nil {
		s.logger.Warn("Failed to queue relay delivery, left for recovery",
			zap.String("delivery_id", id.String()),
			zap.Error(err))
	}
}

func (s *RelayService) forwardUnrecorded(delivery *model.RelayDelivery) {
	if _, err := s.forwarder.Forward(context.Background(), delivery); err != nil {
		metrics.RelayForwards.WithLabelValues(string(model.RelayForwardFailed)).Inc()
		s.logger.Error("Unrecorded relay forward failed",
			zap.String("delivery_id", delivery.ID.String()),
			zap.String("provider", delivery.Provider),
			zap.Error(err))
		return
	}
	metrics.RelayForwards.WithLabelValues(string(model.RelayForwarded)).Inc()
}
