package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// WebhookLogStatus is the processing stage of an inbound webhook.
type WebhookLogStatus string

const (
	WebhookLogReceived   WebhookLogStatus = "received"
	WebhookLogProcessing WebhookLogStatus = "processing"
	WebhookLogSuccess    WebhookLogStatus = "success"
	WebhookLogError      WebhookLogStatus = "error"
	WebhookLogSkipped    WebhookLogStatus = "skipped"
)

// AllWebhookLogStatuses is the enum order used for the database type.
var AllWebhookLogStatuses = []WebhookLogStatus{
	WebhookLogReceived,
	WebhookLogProcessing,
	WebhookLogSuccess,
	WebhookLogError,
	WebhookLogSkipped,
}

func (s WebhookLogStatus) rank() int {
	switch s {
	case WebhookLogReceived:
		return 0
	case WebhookLogProcessing:
		return 1
	case WebhookLogSuccess, WebhookLogError, WebhookLogSkipped:
		return 2
	default:
		return -1
	}
}

// IsTerminal reports whether no further transition is possible.
func (s WebhookLogStatus) IsTerminal() bool {
	return s.rank() == 2
}

// IsValid reports whether s is a known status.
func (s WebhookLogStatus) IsValid() bool {
	return s.rank() >= 0
}

// Predecessors lists the statuses a record may hold immediately before
// moving to s.
func (s WebhookLogStatus) Predecessors() []WebhookLogStatus {
	var out []WebhookLogStatus
	for _, candidate := range AllWebhookLogStatuses {
		if candidate.CanAdvanceTo(s) {
			out = append(out, candidate)
		}
	}
	return out
}

// CanAdvanceTo reports whether from -> to is a forward transition.
func (s WebhookLogStatus) CanAdvanceTo(to WebhookLogStatus) bool {
	return s.rank() >= 0 && to.rank() > s.rank()
}

// Scan implements sql.Scanner interface
func (s *WebhookLogStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = WebhookLogStatus(v)
	case []byte:
		*s = WebhookLogStatus(v)
	default:
		*s = WebhookLogReceived
	}
	return nil
}

// Value implements driver.Valuer interface
func (s WebhookLogStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// LogOrigin records how a webhook reached the pipeline.
type LogOrigin string

const (
	OriginDirect LogOrigin = "direct"
	OriginRelay  LogOrigin = "relay"
	OriginReplay LogOrigin = "replay"
	OriginLookup LogOrigin = "lookup"
)

// WebhookLog is the audit record written for every inbound call. Rows are
// never deleted and Status only moves forward.
type WebhookLog struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Source          string           `gorm:"size:50;not null;index" json:"source"`
	Origin          LogOrigin        `gorm:"size:20;not null;default:'direct'" json:"origin"`
	SchemaVersion   string           `gorm:"size:40" json:"schema_version,omitempty"`
	EventType       string           `gorm:"size:100;index" json:"event_type"`
	Status          WebhookLogStatus `gorm:"type:webhook_log_status;not null;default:'received';index" json:"status"`
	RawPayload      string           `gorm:"type:text;not null" json:"raw_payload"`
	ExtractedEmail  *string          `gorm:"size:320;index" json:"extracted_email,omitempty"`
	TransactionID   *string          `gorm:"size:255;index" json:"transaction_id,omitempty"`
	SignatureValid  bool             `gorm:"not null;default:false" json:"signature_valid"`
	ErrorMessage    *string          `gorm:"type:text" json:"error_message,omitempty"`
	RelayDeliveryID *uuid.UUID       `gorm:"type:uuid;index" json:"relay_delivery_id,omitempty"`
	ReplayOf        *uuid.UUID       `gorm:"type:uuid" json:"replay_of,omitempty"`
	CreatedAt       time.Time        `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"not null;default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (WebhookLog) TableName() string {
	return "webhook_logs"
}
