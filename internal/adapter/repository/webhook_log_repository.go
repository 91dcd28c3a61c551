package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type webhookLogRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookLogRepository creates a new webhook log repository
func NewWebhookLogRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookLogRepository {
	return &webhookLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new audit record
func (r *webhookLogRepository) Create(ctx context.Context, log *model.WebhookLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.Status == "" {
		log.Status = model.WebhookLogReceived
	}
	if log.Origin == "" {
		log.Origin = model.OriginDirect
	}

	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		r.logger.Error("Failed to create webhook log",
			zap.String("source", log.Source),
			zap.Error(err))
		return fmt.Errorf("failed to create webhook log: %w", err)
	}
	return nil
}

// Get retrieves a webhook log by ID
func (r *webhookLogRepository) Get(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error) {
	var log model.WebhookLog

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&log).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook log",
			zap.String("log_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook log: %w", err)
	}

	return &log, nil
}

// Advance moves a record forward. The status guard lives in the WHERE
// clause so two writers can never both win the same transition.
func (r *webhookLogRepository) Advance(ctx context.Context, id uuid.UUID, to model.WebhookLogStatus, update repository.LogUpdate) error {
	predecessors := to.Predecessors()
	if len(predecessors) == 0 {
		return fmt.Errorf("%w: cannot enter %s", domainErrors.ErrStatusRegression, to)
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if update.EventType != nil {
		updates["event_type"] = *update.EventType
	}
	if update.SchemaVersion != nil {
		updates["schema_version"] = *update.SchemaVersion
	}
	if update.ExtractedEmail != nil {
		updates["extracted_email"] = *update.ExtractedEmail
	}
	if update.TransactionID != nil {
		updates["transaction_id"] = *update.TransactionID
	}
	if update.ErrorMessage != nil {
		updates["error_message"] = *update.ErrorMessage
	}

	result := r.db.WithContext(ctx).
		Model(&model.WebhookLog{}).
		Where("id = ? AND status IN ?", id, predecessors).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to advance webhook log",
			zap.String("log_id", id.String()),
			zap.String("status", string(to)),
			zap.Error(result.Error))
		return fmt.Errorf("failed to advance webhook log: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %s", domainErrors.ErrLogNotFound, id)
		}
		return fmt.Errorf("%w: %s -> %s", domainErrors.ErrStatusRegression, current.Status, to)
	}

	return nil
}

// Reclaim takes over a processing record abandoned by a crashed worker
func (r *webhookLogRepository) Reclaim(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.WebhookLog{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, model.WebhookLogProcessing, staleBefore).
		Update("updated_at", time.Now())

	if result.Error != nil {
		r.logger.Error("Failed to reclaim webhook log",
			zap.String("log_id", id.String()),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to reclaim webhook log: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// ListStale retrieves records the dispatcher should pick up again
func (r *webhookLogRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*model.WebhookLog, error) {
	var logs []*model.WebhookLog

	query := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]model.WebhookLogStatus{model.WebhookLogReceived, model.WebhookLogProcessing},
			before).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&logs).Error; err != nil {
		r.logger.Error("Failed to list stale webhook logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list stale webhook logs: %w", err)
	}

	return logs, nil
}

// List retrieves records matching filter, newest first
func (r *webhookLogRepository) List(ctx context.Context, filter repository.LogFilter) ([]*model.WebhookLog, error) {
	var logs []*model.WebhookLog

	query := r.db.WithContext(ctx).Order("created_at DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", strings.ToLower(filter.Source))
	}
	if filter.Email != "" {
		query = query.Where("extracted_email = ?", model.NormalizeEmail(filter.Email))
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	query = query.Limit(clampLimit(filter.Limit))
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&logs).Error; err != nil {
		r.logger.Error("Failed to list webhook logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}

	return logs, nil
}

// SearchPayload runs the indexed substring match used by diagnostics. The
// raw_payload trigram index serves the ILIKE.
func (r *webhookLogRepository) SearchPayload(ctx context.Context, term string, limit int) ([]*model.WebhookLog, error) {
	var logs []*model.WebhookLog

	pattern := "%" + escapeLike(term) + "%"
	err := r.db.WithContext(ctx).
		Where("extracted_email ILIKE ? OR raw_payload ILIKE ?", pattern, pattern).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&logs).Error

	if err != nil {
		r.logger.Error("Failed to search webhook payloads",
			zap.String("term", term),
			zap.Error(err))
		return nil, fmt.Errorf("failed to search webhook logs: %w", err)
	}

	return logs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
