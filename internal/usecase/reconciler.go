package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// LedgerKey is the subscription_records.transaction_id an event is stored
// under. Revocations share the purchase's transaction id at the provider,
// so their kind is appended.
func LedgerKey(event *entity.PurchaseEvent) string {
	if event.Kind.IsRevocation() {
		return fmt.Sprintf("%s:%s", event.TransactionID, event.Kind)
	}
	return event.TransactionID
}

// Reconciler applies a validated event to user_accounts and appends its
// ledger row. Each Apply is one database transaction.
type Reconciler struct {
	repo   repository.SubscriptionRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(repo repository.SubscriptionRepository, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		repo:   repo,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces time.Now, for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Apply stores event. ErrDuplicateTransaction means the ledger already has
// the key and nothing changed; ErrUserNotFound means a revocation arrived
// for an unknown email.
func (r *Reconciler) Apply(ctx context.Context, event *entity.PurchaseEvent, logID *uuid.UUID) (*model.UserAccount, error) {
	switch {
	case event.Kind == entity.EventKindPurchase:
		return r.grant(ctx, event, logID)
	case event.Kind.IsRevocation():
		return r.revoke(ctx, event, logID)
	default:
		return nil, fmt.Errorf("event kind %q cannot be applied", event.Kind)
	}
}

func (r *Reconciler) grant(ctx context.Context, event *entity.PurchaseEvent, logID *uuid.UUID) (*model.UserAccount, error) {
	start := event.StartDate(r.now().UTC())
	expiration := event.ExpirationFrom(start)

	status := model.SubscriptionActive
	if event.IsLifetime {
		status = model.SubscriptionLifetime
	}

	grant := repository.AccessGrant{
		Email:          event.SubscriberEmail,
		AccessLevel:    model.AccessLevelPremium,
		PlanType:       event.PlanIdentifier,
		Source:         event.ProviderName,
		StartDate:      start,
		ExpirationDate: expiration,
		Lifetime:       event.IsLifetime,
	}
	record := r.newRecord(event, logID, status, start, expiration)
	record.PlanType = event.PlanIdentifier

	user, err := r.repo.ApplyGrant(ctx, grant, record)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("email", user.Email),
		zap.String("provider", event.ProviderName),
		zap.String("transaction_id", record.TransactionID),
		zap.String("plan", event.PlanIdentifier),
		zap.Bool("lifetime", event.IsLifetime),
	}
	if expiration != nil {
		fields = append(fields, zap.Time("expires_at", *expiration))
	}
	r.logger.Info("Access granted", fields...)
	return user, nil
}

func (r *Reconciler) revoke(ctx context.Context, event *entity.PurchaseEvent, logID *uuid.UUID) (*model.UserAccount, error) {
	effective := event.StartDate(r.now().UTC())

	var status model.SubscriptionRecordStatus
	switch event.Kind {
	case entity.EventKindRefund:
		status = model.SubscriptionRefunded
	case entity.EventKindChargeback:
		status = model.SubscriptionChargeback
	default:
		status = model.SubscriptionCanceled
	}

	revocation := repository.AccessRevocation{
		Email:                 event.SubscriberEmail,
		OriginalTransactionID: event.TransactionID,
		// a cancellation stops renewal; the paid term still runs out
		Downgrade:   event.Kind != entity.EventKindCancellation,
		EffectiveAt: effective,
	}
	record := r.newRecord(event, logID, status, effective, &effective)
	// replaced by the original purchase's plan when it is on the ledger
	record.PlanType = event.PlanIdentifier

	user, err := r.repo.ApplyRevocation(ctx, revocation, record)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Access revoked",
		zap.String("email", user.Email),
		zap.String("provider", event.ProviderName),
		zap.String("transaction_id", record.TransactionID),
		zap.String("kind", string(event.Kind)),
		zap.String("access_level", string(user.AccessLevel)))
	return user, nil
}

func (r *Reconciler) newRecord(event *entity.PurchaseEvent, logID *uuid.UUID, status model.SubscriptionRecordStatus, start time.Time, end *time.Time) *model.SubscriptionRecord {
	var raw datatypes.JSON
	if len(event.RawPayload) > 0 {
		raw = datatypes.JSON(event.RawPayload)
	}
	return &model.SubscriptionRecord{
		ID:                uuid.New(),
		Status:            status,
		StartDate:         start,
		EndDate:           end,
		OriginProvider:    event.ProviderName,
		TransactionID:     LedgerKey(event),
		SubscriptionCode:  event.SubscriptionCode,
		PlanID:            event.PlanID,
		PaymentMethod:     event.PaymentMethod,
		Price:             event.Amount,
		Currency:          event.Currency,
		RawWebhookPayload: raw,
		WebhookLogID:      logID,
	}
}
