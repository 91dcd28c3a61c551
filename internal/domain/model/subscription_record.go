package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type SubscriptionRecordStatus string

const (
	SubscriptionActive     SubscriptionRecordStatus = "active"
	SubscriptionLifetime   SubscriptionRecordStatus = "lifetime"
	SubscriptionRefunded   SubscriptionRecordStatus = "refunded"
	SubscriptionChargeback SubscriptionRecordStatus = "chargeback"
	SubscriptionCanceled   SubscriptionRecordStatus = "canceled"
)

// SubscriptionRecord is one ledger entry. TransactionID is the idempotency
// key; rows are never updated after insert.
type SubscriptionRecord struct {
	ID                uuid.UUID                `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID                `gorm:"type:uuid;not null;index" json:"user_id"`
	User              *UserAccount             `gorm:"foreignKey:UserID;constraint:OnDelete:RESTRICT" json:"-"`
	PlanType          string                   `gorm:"size:100;not null" json:"plan_type"`
	Status            SubscriptionRecordStatus `gorm:"size:30;not null" json:"status"`
	StartDate         time.Time                `gorm:"not null" json:"start_date"`
	EndDate           *time.Time               `json:"end_date,omitempty"`
	OriginProvider    string                   `gorm:"size:50;not null;index" json:"origin_provider"`
	TransactionID     string                   `gorm:"size:255;not null;uniqueIndex:idx_subscription_records_transaction_id" json:"transaction_id"`
	SubscriptionCode  string                   `gorm:"size:255" json:"subscription_code,omitempty"`
	PlanID            string                   `gorm:"size:255" json:"plan_id,omitempty"`
	PaymentMethod     string                   `gorm:"size:100" json:"payment_method,omitempty"`
	Price             decimal.Decimal          `gorm:"type:decimal(12,2);not null;default:0" json:"price"`
	Currency          string                   `gorm:"size:10" json:"currency,omitempty"`
	RawWebhookPayload datatypes.JSON           `gorm:"type:jsonb" json:"raw_webhook_payload,omitempty"`
	WebhookLogID      *uuid.UUID               `gorm:"type:uuid" json:"webhook_log_id,omitempty"`
	CreatedAt         time.Time                `gorm:"not null;default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (SubscriptionRecord) TableName() string {
	return "subscription_records"
}
