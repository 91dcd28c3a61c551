package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
)

// LogUpdate carries the optional columns set alongside a status change.
// Nil fields are left untouched.
type LogUpdate struct {
	EventType      *string
	SchemaVersion  *string
	ExtractedEmail *string
	TransactionID  *string
	ErrorMessage   *string
}

// LogFilter narrows List results.
type LogFilter struct {
	Status model.WebhookLogStatus
	Source string
	Email  string
	Since  *time.Time
	Limit  int
	Offset int
}

// WebhookLogRepository persists the audit trail.
type WebhookLogRepository interface {
	Create(ctx context.Context, log *model.WebhookLog) error
	// Get returns nil, nil when the record does not exist.
	Get(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error)
	// Advance moves the record to status when its current status precedes
	// it. Otherwise it returns ErrStatusRegression and changes nothing.
	Advance(ctx context.Context, id uuid.UUID, to model.WebhookLogStatus, update LogUpdate) error
	// Reclaim refreshes updated_at of a processing record whose last update
	// is older than staleBefore. It reports whether the caller won the claim.
	Reclaim(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error)
	// ListStale returns received or processing records untouched since before.
	ListStale(ctx context.Context, before time.Time, limit int) ([]*model.WebhookLog, error)
	List(ctx context.Context, filter LogFilter) ([]*model.WebhookLog, error)
	// SearchPayload finds records whose extracted email or raw payload text
	// contains term, newest first.
	SearchPayload(ctx context.Context, term string, limit int) ([]*model.WebhookLog, error)
}
