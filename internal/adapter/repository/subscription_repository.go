package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// ExistsByTransactionID checks the ledger for a transaction id
func (r *subscriptionRepository) ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.SubscriptionRecord{}).
		Where("transaction_id = ?", transactionID).
		Limit(1).
		Count(&count).Error

	if err != nil {
		r.logger.Error("Failed to check transaction",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}

	return count > 0, nil
}

// grantAssignments is the ON CONFLICT (email) update. A lifetime flag, once
// set, is never cleared by a later purchase, and an expiration only moves
// later.
var grantAssignments = clause.Assignments(map[string]interface{}{
	"access_level":            gorm.Expr("EXCLUDED.access_level"),
	"plan_type":               gorm.Expr("CASE WHEN user_accounts.lifetime_access THEN user_accounts.plan_type ELSE EXCLUDED.plan_type END"),
	"subscription_source":     gorm.Expr("EXCLUDED.subscription_source"),
	"subscription_start_date": gorm.Expr("EXCLUDED.subscription_start_date"),
	"subscription_expiration_date": gorm.Expr(
		"CASE WHEN user_accounts.lifetime_access OR EXCLUDED.lifetime_access THEN NULL " +
			"ELSE GREATEST(user_accounts.subscription_expiration_date, EXCLUDED.subscription_expiration_date) END"),
	"lifetime_access": gorm.Expr("user_accounts.lifetime_access OR EXCLUDED.lifetime_access"),
	"updated_at":      gorm.Expr("EXCLUDED.updated_at"),
})

// ApplyGrant upserts the account and appends the ledger row in one
// transaction
func (r *subscriptionRepository) ApplyGrant(ctx context.Context, grant repository.AccessGrant, record *model.SubscriptionRecord) (*model.UserAccount, error) {
	var user model.UserAccount

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		start := grant.StartDate
		candidate := model.UserAccount{
			ID:                         uuid.New(),
			Email:                      model.NormalizeEmail(grant.Email),
			AccessLevel:                grant.AccessLevel,
			PlanType:                   grant.PlanType,
			SubscriptionSource:         grant.Source,
			SubscriptionStartDate:      &start,
			SubscriptionExpirationDate: grant.ExpirationDate,
			LifetimeAccess:             grant.Lifetime,
			CreatedAt:                  now,
			UpdatedAt:                  now,
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: grantAssignments,
		}).Create(&candidate).Error; err != nil {
			return fmt.Errorf("failed to upsert user account: %w", err)
		}

		if err := tx.Where("email = ?", candidate.Email).First(&user).Error; err != nil {
			return fmt.Errorf("failed to reload user account: %w", err)
		}

		return r.appendRecord(tx, user.ID, record)
	})

	if err != nil {
		if !errors.Is(err, domainErrors.ErrDuplicateTransaction) {
			r.logger.Error("Failed to apply access grant",
				zap.String("email", grant.Email),
				zap.String("transaction_id", record.TransactionID),
				zap.Error(err))
		}
		return nil, err
	}

	return &user, nil
}

// ApplyRevocation withdraws access and appends the ledger row in one
// transaction
func (r *subscriptionRepository) ApplyRevocation(ctx context.Context, revocation repository.AccessRevocation, record *model.SubscriptionRecord) (*model.UserAccount, error) {
	var user model.UserAccount

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		email := model.NormalizeEmail(revocation.Email)
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("email = ?", email).
			First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", domainErrors.ErrUserNotFound, email)
			}
			return fmt.Errorf("failed to load user account: %w", err)
		}

		var original model.SubscriptionRecord
		originalFound := false
		if revocation.OriginalTransactionID != "" {
			err := tx.Where("transaction_id = ?", revocation.OriginalTransactionID).First(&original).Error
			switch {
			case err == nil:
				originalFound = true
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("failed to load original purchase: %w", err)
			}
		}
		if originalFound {
			record.PlanType = original.PlanType
		}

		// A lifetime account keeps access unless the reversed purchase is
		// the one that granted lifetime.
		keepLifetime := user.LifetimeAccess && !(originalFound && original.Status == model.SubscriptionLifetime)

		if revocation.Downgrade && !keepLifetime {
			effective := revocation.EffectiveAt
			updates := map[string]interface{}{
				"access_level":                 model.AccessLevelFree,
				"lifetime_access":              false,
				"subscription_expiration_date": effective,
				"updated_at":                   time.Now(),
			}
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to downgrade user account: %w", err)
			}
			if err := tx.Where("id = ?", user.ID).First(&user).Error; err != nil {
				return fmt.Errorf("failed to reload user account: %w", err)
			}
		}

		return r.appendRecord(tx, user.ID, record)
	})

	if err != nil {
		if !errors.Is(err, domainErrors.ErrDuplicateTransaction) && !errors.Is(err, domainErrors.ErrUserNotFound) {
			r.logger.Error("Failed to apply access revocation",
				zap.String("email", revocation.Email),
				zap.String("transaction_id", record.TransactionID),
				zap.Error(err))
		}
		return nil, err
	}

	return &user, nil
}

// appendRecord inserts the ledger row. A conflicting transaction id makes
// the insert a no-op, which is reported as ErrDuplicateTransaction so the
// surrounding transaction rolls back.
func (r *subscriptionRepository) appendRecord(tx *gorm.DB, userID uuid.UUID, record *model.SubscriptionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.UserID = userID
	record.User = nil

	result := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(record)

	if result.Error != nil {
		return fmt.Errorf("failed to insert subscription record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domainErrors.ErrDuplicateTransaction, record.TransactionID)
	}
	return nil
}

// GetUserByEmail retrieves a user account by normalized email
func (r *subscriptionRepository) GetUserByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	var user model.UserAccount

	err := r.db.WithContext(ctx).
		Where("email = ?", model.NormalizeEmail(email)).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get user account",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user account: %w", err)
	}

	return &user, nil
}

// ListByUser retrieves a user's ledger, newest first
func (r *subscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.SubscriptionRecord, error) {
	var records []*model.SubscriptionRecord

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error

	if err != nil {
		r.logger.Error("Failed to list subscription records",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list subscription records: %w", err)
	}

	return records, nil
}

// FindByPayloadEmail matches email at any of the given JSON paths of the
// stored ledger payloads
func (r *subscriptionRepository) FindByPayloadEmail(ctx context.Context, email string, paths [][]string, limit int) ([]*model.SubscriptionRecord, error) {
	var records []*model.SubscriptionRecord
	if len(paths) == 0 {
		return records, nil
	}

	cond := r.db.Where(datatypes.JSONQuery("raw_webhook_payload").Equals(email, paths[0]...))
	for _, path := range paths[1:] {
		cond = cond.Or(datatypes.JSONQuery("raw_webhook_payload").Equals(email, path...))
	}

	err := r.db.WithContext(ctx).
		Where(cond).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&records).Error

	if err != nil {
		r.logger.Error("Failed to search ledger payloads",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("failed to search subscription records: %w", err)
	}

	return records, nil
}
