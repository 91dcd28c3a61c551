package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind classifies a provider event by its effect on access.
type EventKind string

const (
	EventKindPurchase     EventKind = "purchase"
	EventKindRefund       EventKind = "refund"
	EventKindChargeback   EventKind = "chargeback"
	EventKindCancellation EventKind = "cancellation"
	EventKindIgnored      EventKind = "ignored"
)

// IsRevocation reports whether the kind withdraws previously granted access.
func (k EventKind) IsRevocation() bool {
	return k == EventKindRefund || k == EventKindChargeback || k == EventKindCancellation
}

// PurchaseEvent is the provider independent form of a billing notification.
type PurchaseEvent struct {
	EventType     string    `json:"event_type"`
	Kind          EventKind `json:"kind"`
	OccurredAt    time.Time `json:"occurred_at"`
	ProviderName  string    `json:"provider_name"`
	SchemaVersion string    `json:"schema_version"`

	TransactionID    string `json:"transaction_id"`
	SubscriberEmail  string `json:"subscriber_email"`
	BuyerName        string `json:"buyer_name,omitempty"`
	SubscriptionCode string `json:"subscription_code,omitempty"`

	// PlanIdentifier is the canonical plan when the table matched, otherwise
	// whatever the provider sent.
	PlanIdentifier   string `json:"plan_identifier,omitempty"`
	PlanID           string `json:"plan_id,omitempty"`
	PlanDurationDays *int   `json:"plan_duration_days"`
	// PlanMonths is set for calendar recurrences (monthly, yearly) and takes
	// precedence over PlanDurationDays when computing expiration.
	PlanMonths        int  `json:"plan_months,omitempty"`
	IsLifetime        bool `json:"is_lifetime"`
	DurationDefaulted bool `json:"duration_defaulted,omitempty"`

	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`

	RawPayload []byte `json:"-"`
}

// ExpirationFrom returns when access bought by this event ends, or nil for
// lifetime plans.
func (e *PurchaseEvent) ExpirationFrom(start time.Time) *time.Time {
	if e.IsLifetime {
		return nil
	}
	var end time.Time
	switch {
	case e.PlanMonths > 0:
		end = start.AddDate(0, e.PlanMonths, 0)
	case e.PlanDurationDays != nil:
		end = start.AddDate(0, 0, *e.PlanDurationDays)
	default:
		end = start.AddDate(0, 0, DefaultPlanDurationDays)
	}
	return &end
}

// StartDate is the moment access begins: the provider's timestamp when
// known, otherwise now.
func (e *PurchaseEvent) StartDate(now time.Time) time.Time {
	if e.OccurredAt.IsZero() {
		return now
	}
	return e.OccurredAt
}
