package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RelayDeliveryStatus string

const (
	RelayQueued        RelayDeliveryStatus = "queued"
	RelayForwarded     RelayDeliveryStatus = "forwarded"
	RelayForwardFailed RelayDeliveryStatus = "forward_failed"
)

// RelayDelivery is the relay's own record of a webhook it accepted. It is
// written before the caller gets a response. RawPayload is the readable
// text; Body keeps the exact bytes the provider signed and is what gets
// forwarded.
type RelayDelivery struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Provider       string              `gorm:"size:50;not null;index" json:"provider"`
	RawPayload     string              `gorm:"type:text;not null" json:"raw_payload"`
	Body           []byte              `gorm:"type:bytea" json:"-"`
	Headers        datatypes.JSONMap   `gorm:"type:jsonb" json:"headers"`
	Status         RelayDeliveryStatus `gorm:"size:20;not null;default:'queued';index" json:"status"`
	Attempts       int                 `gorm:"not null;default:0" json:"attempts"`
	LastError      *string             `gorm:"type:text" json:"last_error,omitempty"`
	ResponseStatus *string             `gorm:"size:50" json:"response_status,omitempty"`
	ForwardedAt    *time.Time          `json:"forwarded_at,omitempty"`
	CreatedAt      time.Time           `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"not null;default:now()" json:"updated_at"`
}

// ForwardBody is the payload to send on. Rows written before Body existed
// fall back to the text copy.
func (d *RelayDelivery) ForwardBody() []byte {
	if len(d.Body) > 0 {
		return d.Body
	}
	return []byte(d.RawPayload)
}

// TableName specifies the table name for GORM
func (RelayDelivery) TableName() string {
	return "relay_deliveries"
}
