package database

import (
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/adapter/repository"
	domainRepo "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances of the main application
type Repositories struct {
	WebhookLog   domainRepo.WebhookLogRepository
	Subscription domainRepo.SubscriptionRepository
	Credential   domainRepo.CredentialRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		WebhookLog:   repository.NewWebhookLogRepository(db, logger),
		Subscription: repository.NewSubscriptionRepository(db, logger),
		Credential:   repository.NewCredentialRepository(db, logger),
	}
}
