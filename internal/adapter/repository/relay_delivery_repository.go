package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type relayDeliveryRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRelayDeliveryRepository creates a new relay delivery repository
func NewRelayDeliveryRepository(db *gorm.DB, logger *zap.Logger) repository.RelayDeliveryRepository {
	return &relayDeliveryRepository{
		db:     db,
		logger: logger,
	}
}

func (r *relayDeliveryRepository) Create(ctx context.Context, delivery *model.RelayDelivery) error {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	if delivery.Status == "" {
		delivery.Status = model.RelayQueued
	}

	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		r.logger.Error("Failed to create relay delivery",
			zap.String("provider", delivery.Provider),
			zap.Error(err))
		return fmt.Errorf("failed to create relay delivery: %w", err)
	}
	return nil
}

func (r *relayDeliveryRepository) Get(ctx context.Context, id uuid.UUID) (*model.RelayDelivery, error) {
	var delivery model.RelayDelivery

	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&delivery).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get relay delivery",
			zap.String("delivery_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get relay delivery: %w", err)
	}

	return &delivery, nil
}

func (r *relayDeliveryRepository) RecordAttempt(ctx context.Context, id uuid.UUID, result repository.ForwardResult) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":          result.Status,
		"attempts":        gorm.Expr("attempts + 1"),
		"response_status": result.ResponseStatus,
		"last_error":      result.LastError,
		"updated_at":      now,
	}
	if result.Status == model.RelayForwarded {
		updates["forwarded_at"] = now
	}

	res := r.db.WithContext(ctx).
		Model(&model.RelayDelivery{}).
		Where("id = ?", id).
		Updates(updates)

	if res.Error != nil {
		r.logger.Error("Failed to record forward attempt",
			zap.String("delivery_id", id.String()),
			zap.Error(res.Error))
		return fmt.Errorf("failed to record forward attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("relay delivery not found: %s", id)
	}
	return nil
}

// Requeue only touches forward_failed rows, so a delivery that is queued or
// already forwarded is never sent twice by an admin retry.
func (r *relayDeliveryRepository) Requeue(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RelayDelivery{}).
		Where("id = ? AND status = ?", id, model.RelayForwardFailed).
		Updates(map[string]interface{}{
			"status":     model.RelayQueued,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		r.logger.Error("Failed to requeue relay delivery",
			zap.String("delivery_id", id.String()),
			zap.Error(res.Error))
		return false, fmt.Errorf("failed to requeue relay delivery: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *relayDeliveryRepository) ListByStatus(ctx context.Context, status model.RelayDeliveryStatus, limit int) ([]*model.RelayDelivery, error) {
	var deliveries []*model.RelayDelivery

	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(clampLimit(limit)).
		Find(&deliveries).Error

	if err != nil {
		r.logger.Error("Failed to list relay deliveries",
			zap.String("status", string(status)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list relay deliveries: %w", err)
	}

	return deliveries, nil
}
