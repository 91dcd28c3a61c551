package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AccessLevel string

const (
	AccessLevelFree    AccessLevel = "free"
	AccessLevelPremium AccessLevel = "premium"
)

// UserAccount is shared with the rest of the application, which reads
// AccessLevel and SubscriptionExpirationDate for access control.
type UserAccount struct {
	ID                         uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Email                      string      `gorm:"size:320;not null;uniqueIndex:idx_user_accounts_email" json:"email"`
	AccessLevel                AccessLevel `gorm:"size:30;not null;default:'free'" json:"access_level"`
	PlanType                   string      `gorm:"size:100" json:"plan_type,omitempty"`
	SubscriptionSource         string      `gorm:"size:50" json:"subscription_source,omitempty"`
	SubscriptionStartDate      *time.Time  `json:"subscription_start_date,omitempty"`
	SubscriptionExpirationDate *time.Time  `json:"subscription_expiration_date,omitempty"`
	LifetimeAccess             bool        `gorm:"not null;default:false" json:"lifetime_access"`
	CreatedAt                  time.Time   `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                  time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (UserAccount) TableName() string {
	return "user_accounts"
}

// NormalizeEmail is the canonical form stored in user_accounts.email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
