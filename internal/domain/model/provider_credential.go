package model

import "time"

// ProviderCredential is maintained by the configuration store and only read
// here. Secrets are AES-GCM ciphertext when their IV column is set.
type ProviderCredential struct {
	Provider        string    `gorm:"primaryKey;size:50" json:"provider"`
	ClientID        string    `gorm:"size:255" json:"client_id"`
	ClientSecret    string    `gorm:"type:text" json:"-"`
	ClientSecretIV  string    `gorm:"size:64" json:"-"`
	WebhookSecret   string    `gorm:"type:text" json:"-"`
	WebhookSecretIV string    `gorm:"size:64" json:"-"`
	TokenURL        string    `gorm:"size:500" json:"token_url,omitempty"`
	APIBaseURL      string    `gorm:"size:500" json:"api_base_url,omitempty"`
	UpdatedAt       time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ProviderCredential) TableName() string {
	return "provider_credentials"
}
