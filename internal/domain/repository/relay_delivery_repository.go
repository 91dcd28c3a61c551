package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
)

// ForwardResult is written after each forward attempt.
type ForwardResult struct {
	Status         model.RelayDeliveryStatus
	ResponseStatus *string
	LastError      *string
}

// RelayDeliveryRepository is the relay's local record store.
type RelayDeliveryRepository interface {
	Create(ctx context.Context, delivery *model.RelayDelivery) error
	Get(ctx context.Context, id uuid.UUID) (*model.RelayDelivery, error)
	// RecordAttempt increments the attempt counter and stores result.
	RecordAttempt(ctx context.Context, id uuid.UUID, result ForwardResult) error
	// Requeue moves a forward_failed delivery back to queued.
	Requeue(ctx context.Context, id uuid.UUID) (bool, error)
	ListByStatus(ctx context.Context, status model.RelayDeliveryStatus, limit int) ([]*model.RelayDelivery, error)
}
