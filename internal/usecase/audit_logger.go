package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

const maxSourceLength = 50

// Inbound describes one call that must leave an audit record.
type Inbound struct {
	Provider        string
	Body            []byte
	SignatureValid  bool
	Origin          model.LogOrigin
	RelayDeliveryID *uuid.UUID
	ReplayOf        *uuid.UUID
}

// AuditLogger writes the webhook log record of every inbound call and moves
// it through received, processing and a terminal status.
type AuditLogger struct {
	repo   repository.WebhookLogRepository
	logger *zap.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(repo repository.WebhookLogRepository, logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		repo:   repo,
		logger: logger,
	}
}

// Begin stores the received record. Nothing else happens to a call whose
// record could not be written.
func (a *AuditLogger) Begin(ctx context.Context, in Inbound) (*model.WebhookLog, error) {
	origin := in.Origin
	if origin == "" {
		origin = model.OriginDirect
	}

	log := &model.WebhookLog{
		ID:              uuid.New(),
		Source:          sourceName(in.Provider),
		Origin:          origin,
		Status:          model.WebhookLogReceived,
		RawPayload:      sanitizePayload(in.Body),
		SignatureValid:  in.SignatureValid,
		RelayDeliveryID: in.RelayDeliveryID,
		ReplayOf:        in.ReplayOf,
	}

	if err := a.repo.Create(ctx, log); err != nil {
		a.logger.Error("Failed to write webhook log",
			zap.String("provider", log.Source),
			zap.String("origin", string(origin)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrStorageUnavailable, err)
	}

	metrics.WebhooksReceived.WithLabelValues(log.Source, string(origin)).Inc()
	a.logger.Info("Webhook received",
		zap.String("log_id", log.ID.String()),
		zap.String("provider", log.Source),
		zap.String("origin", string(origin)),
		zap.Bool("signature_valid", log.SignatureValid))
	return log, nil
}

// Get returns nil, nil for an unknown id.
func (a *AuditLogger) Get(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error) {
	return a.repo.Get(ctx, id)
}

// List returns records newest first. Limit defaults to 50 and is capped at 500.
func (a *AuditLogger) List(ctx context.Context, filter repository.LogFilter) ([]*model.WebhookLog, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("invalid status %q", filter.Status)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = 50
	case filter.Limit > 500:
		filter.Limit = 500
	}
	return a.repo.List(ctx, filter)
}

// Claim moves a received record to processing. ErrStatusRegression means
// another worker got there first.
func (a *AuditLogger) Claim(ctx context.Context, id uuid.UUID) error {
	return a.repo.Advance(ctx, id, model.WebhookLogProcessing, repository.LogUpdate{})
}

// Finish stores a terminal status along with what was extracted.
func (a *AuditLogger) Finish(ctx context.Context, id uuid.UUID, status model.WebhookLogStatus, update repository.LogUpdate) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}

	if err := a.repo.Advance(ctx, id, status, update); err != nil {
		a.logger.Error("Failed to finish webhook log",
			zap.String("log_id", id.String()),
			zap.String("status", string(status)),
			zap.Error(err))
		return err
	}

	fields := []zap.Field{
		zap.String("log_id", id.String()),
		zap.String("status", string(status)),
	}
	if update.TransactionID != nil {
		fields = append(fields, zap.String("transaction_id", *update.TransactionID))
	}
	if update.ErrorMessage != nil {
		fields = append(fields, zap.String("reason", *update.ErrorMessage))
	}
	if status == model.WebhookLogError {
		a.logger.Warn("Webhook processing failed", fields...)
	} else {
		a.logger.Info("Webhook processed", fields...)
	}
	return nil
}

// sourceName keeps arbitrary path segments inside the column width.
func sourceName(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if len(p) > maxSourceLength {
		p = strings.ToValidUTF8(p[:maxSourceLength], "")
	}
	if p == "" {
		p = "unknown"
	}
	return p
}

// sanitizePayload makes body storable in a text column: Postgres rejects
// NUL bytes and invalid UTF-8.
func sanitizePayload(body []byte) string {
	s := strings.ToValidUTF8(string(body), "\uFFFD")
	return strings.ReplaceAll(s, "\x00", "")
}
