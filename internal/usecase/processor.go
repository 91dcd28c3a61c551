package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/metrics"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/normalizer"
	"go.uber.org/zap"
)

// RecordProcessor runs a stored webhook log record through the pipeline.
// Process handles records still in received. Resume is for records the
// caller reclaimed while they were stuck in processing.
type RecordProcessor interface {
	Process(ctx context.Context, logID uuid.UUID) error
	Resume(ctx context.Context, logID uuid.UUID) error
}

// Processor is the pipeline after the received record exists: normalize,
// dedup, reconcile, then write the terminal status.
type Processor struct {
	audit      *AuditLogger
	normalizer *normalizer.Normalizer
	dedup      *DedupGuard
	reconciler *Reconciler
	logger     *zap.Logger

	// providers whose unsigned webhooks are recorded but not applied
	rejectUnsigned map[string]bool
}

// NewProcessor creates a new pipeline processor
func NewProcessor(
	audit *AuditLogger,
	norm *normalizer.Normalizer,
	dedup *DedupGuard,
	reconciler *Reconciler,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		audit:      audit,
		normalizer: norm,
		dedup:      dedup,
		reconciler: reconciler,
		logger:     logger,
	}
}

// WithSignaturePolicy makes the processor skip records with an invalid
// signature for providers configured to reject them.
func (p *Processor) WithSignaturePolicy(providers map[string]config.ProviderConfig) *Processor {
	p.rejectUnsigned = make(map[string]bool, len(providers))
	for name, pc := range providers {
		if pc.RejectInvalidSignature {
			p.rejectUnsigned[name] = true
		}
	}
	return p
}

// outcome is the terminal status a run decided on.
type outcome struct {
	status model.WebhookLogStatus
	update repository.LogUpdate
}

func (o *outcome) reason(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	o.update.ErrorMessage = &msg
}

// Process claims a received record and runs it. A record that is terminal,
// or already in processing, belongs to someone else and is left alone.
func (p *Processor) Process(ctx context.Context, logID uuid.UUID) error {
	rec, err := p.load(ctx, logID)
	if err != nil {
		return err
	}
	if rec.Status != model.WebhookLogReceived {
		p.logger.Debug("Webhook log not in received, leaving it",
			zap.String("log_id", logID.String()),
			zap.String("status", string(rec.Status)))
		return nil
	}

	if err := p.audit.Claim(ctx, logID); err != nil {
		if errors.Is(err, domainErrors.ErrStatusRegression) {
			p.logger.Debug("Webhook log already claimed", zap.String("log_id", logID.String()))
			return nil
		}
		return fmt.Errorf("failed to claim webhook log: %w", err)
	}
	return p.execute(ctx, rec)
}

// Resume runs a processing record whose reclaim the caller won.
func (p *Processor) Resume(ctx context.Context, logID uuid.UUID) error {
	rec, err := p.load(ctx, logID)
	if err != nil {
		return err
	}
	if rec.Status != model.WebhookLogProcessing {
		return nil
	}
	p.logger.Info("Resuming interrupted webhook", zap.String("log_id", logID.String()))
	return p.execute(ctx, rec)
}

func (p *Processor) load(ctx context.Context, logID uuid.UUID) (*model.WebhookLog, error) {
	rec, err := p.audit.Get(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook log: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrLogNotFound, logID)
	}
	return rec, nil
}

func (p *Processor) execute(ctx context.Context, rec *model.WebhookLog) error {
	logID := rec.ID
	started := time.Now()
	out := p.run(ctx, rec)

	if err := p.audit.Finish(ctx, logID, out.status, out.update); err != nil {
		if errors.Is(err, domainErrors.ErrStatusRegression) {
			return nil
		}
		// the record stays in processing and the sweeper picks it up again
		return fmt.Errorf("failed to finish webhook log: %w", err)
	}

	metrics.WebhookOutcomes.WithLabelValues(rec.Source, string(out.status)).Inc()
	metrics.ProcessingDuration.WithLabelValues(rec.Source).Observe(time.Since(started).Seconds())
	return nil
}

func (p *Processor) run(ctx context.Context, rec *model.WebhookLog) outcome {
	var out outcome

	if !rec.SignatureValid && p.rejectUnsigned[rec.Source] {
		out.status = model.WebhookLogSkipped
		out.reason("signature invalid")
		return out
	}

	res := p.normalizer.Normalize(rec.Source, []byte(rec.RawPayload))
	if res.Schema != "" {
		schema := res.Schema
		out.update.SchemaVersion = &schema
	}
	if res.Event != nil {
		out.update.EventType = optional(res.Event.EventType)
		out.update.ExtractedEmail = optional(res.Event.SubscriberEmail)
		out.update.TransactionID = optional(res.Event.TransactionID)
	}

	if !res.Valid() {
		out.status = model.WebhookLogError
		out.reason("%s", res.Err.Error())
		return out
	}
	event := res.Event

	if event.Kind == entity.EventKindIgnored {
		out.status = model.WebhookLogSkipped
		out.reason("event %q does not change access", event.EventType)
		return out
	}

	key := LedgerKey(event)
	seen, err := p.dedup.Seen(ctx, key)
	if err != nil {
		out.status = model.WebhookLogError
		out.reason("failed to check transaction %s: %v", key, err)
		return out
	}
	if seen {
		out.status = model.WebhookLogSkipped
		out.reason("duplicate transaction %s", key)
		return out
	}

	logID := rec.ID
	_, err = p.reconciler.Apply(ctx, event, &logID)
	switch {
	case err == nil:
		p.dedup.Remember(key)
		out.status = model.WebhookLogSuccess
	case errors.Is(err, domainErrors.ErrDuplicateTransaction):
		p.dedup.Remember(key)
		out.status = model.WebhookLogSkipped
		out.reason("duplicate transaction %s", key)
	case errors.Is(err, domainErrors.ErrUserNotFound):
		out.status = model.WebhookLogSkipped
		out.reason("no account for %s, nothing to revoke", event.SubscriberEmail)
	default:
		out.status = model.WebhookLogError
		out.reason("failed to apply transaction %s: %v", key, err)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
