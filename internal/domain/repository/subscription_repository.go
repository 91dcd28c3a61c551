package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
)

// AccessGrant is the user state a purchase produces.
type AccessGrant struct {
	Email          string
	AccessLevel    model.AccessLevel
	PlanType       string
	Source         string
	StartDate      time.Time
	ExpirationDate *time.Time
	Lifetime       bool
}

// AccessRevocation withdraws access after a refund, chargeback or
// cancellation.
type AccessRevocation struct {
	Email string
	// OriginalTransactionID is the purchase being reversed. When it was a
	// lifetime purchase the lifetime flag is withdrawn as well.
	OriginalTransactionID string
	// Downgrade drops the account to free access immediately. When false
	// the current term is left to run out.
	Downgrade   bool
	EffectiveAt time.Time
}

// SubscriptionRepository owns user_accounts and subscription_records writes.
// Both Apply methods run in one database transaction: either the account
// change and the ledger row are both stored or neither is.
type SubscriptionRepository interface {
	ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error)

	// ApplyGrant upserts the account by email and inserts record. It returns
	// ErrDuplicateTransaction when record.TransactionID already exists.
	ApplyGrant(ctx context.Context, grant AccessGrant, record *model.SubscriptionRecord) (*model.UserAccount, error)

	// ApplyRevocation updates an existing account and inserts record. It
	// returns ErrUserNotFound when no account has the email.
	ApplyRevocation(ctx context.Context, revocation AccessRevocation, record *model.SubscriptionRecord) (*model.UserAccount, error)

	GetUserByEmail(ctx context.Context, email string) (*model.UserAccount, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.SubscriptionRecord, error)
	// FindByPayloadEmail searches stored ledger payloads with a JSON path
	// query, used by diagnostics.
	FindByPayloadEmail(ctx context.Context, email string, paths [][]string, limit int) ([]*model.SubscriptionRecord, error)
}
