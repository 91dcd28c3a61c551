package repository

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type credentialRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCredentialRepository creates a read-only provider credential repository
func NewCredentialRepository(db *gorm.DB, logger *zap.Logger) repository.CredentialRepository {
	return &credentialRepository{
		db:     db,
		logger: logger,
	}
}

func (r *credentialRepository) ListAll(ctx context.Context) ([]*model.ProviderCredential, error) {
	var rows []*model.ProviderCredential

	if err := r.db.WithContext(ctx).Order("provider").Find(&rows).Error; err != nil {
		r.logger.Error("Failed to list provider credentials", zap.Error(err))
		return nil, fmt.Errorf("failed to list provider credentials: %w", err)
	}

	return rows, nil
}
