package eduzz

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/normalizer"
)

const (
	SchemaV2     = "eduzz.v2"
	SchemaLegacy = "eduzz.legacy"
)

// Adapters returns the eduzz payload adapters, most specific first.
func Adapters() []normalizer.PayloadAdapter {
	return []normalizer.PayloadAdapter{V2Adapter{}, LegacyAdapter{}}
}

// StatusKind maps a v2 status code onto its access effect.
func StatusKind(code string) entity.EventKind {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "":
		return ""
	case "approved", "paid":
		return entity.EventKindPurchase
	case "refunded", "refund":
		return entity.EventKindRefund
	case "chargeback", "disputed":
		return entity.EventKindChargeback
	case "canceled", "cancelled", "expired":
		return entity.EventKindCancellation
	default:
		return entity.EventKindIgnored
	}
}

// Legacy trans_status codes.
const (
	legacyStatusPaid     = "3"
	legacyStatusCanceled = "4"
	legacyStatusRefunded = "7"
)

// LegacyStatusKind maps a legacy trans_status code onto its access effect.
func LegacyStatusKind(code string) entity.EventKind {
	switch strings.TrimSpace(code) {
	case "":
		return ""
	case legacyStatusPaid:
		return entity.EventKindPurchase
	case legacyStatusCanceled:
		return entity.EventKindCancellation
	case legacyStatusRefunded:
		return entity.EventKindRefund
	default:
		return entity.EventKindIgnored
	}
}

// V2Adapter reads the current webhook body with nested status, customer,
// transaction and recurrence objects.
type V2Adapter struct{}

func (V2Adapter) Provider() string { return string(provider.Eduzz) }
func (V2Adapter) Schema() string   { return SchemaV2 }

func (V2Adapter) Detect(doc gjson.Result) bool {
	return doc.Get("status.code").Exists() ||
		doc.Get("recurrence").IsObject() ||
		doc.Get("customer").IsObject()
}

func (V2Adapter) Extract(doc gjson.Result) normalizer.Fields {
	code := doc.Get("status.code").String()
	eventType := normalizer.FirstString(doc, "event", "event_name")
	if eventType == "" && code != "" {
		eventType = "status." + strings.ToLower(code)
	}

	return normalizer.Fields{
		EventType:        eventType,
		Kind:             StatusKind(code),
		OccurredAt:       normalizer.FirstTime(doc, "transaction.paid_at", "paid_at", "created_at", "date"),
		TransactionID:    normalizer.FirstString(doc, "transaction.id", "transaction.code", "sale.id"),
		Email:            normalizer.FirstEmail(doc, "customer.email", "buyer.email"),
		BuyerName:        normalizer.FirstString(doc, "customer.name", "buyer.name"),
		SubscriptionCode: normalizer.FirstString(doc, "recurrence.code", "recurrence.id", "contract.id"),
		PlanIdentifier:   normalizer.FirstString(doc, "product.plan.code", "plan.code", "product.plan.name"),
		PlanID:           normalizer.FirstString(doc, "product.plan.id", "product.id"),
		DurationDays:     normalizer.Days(doc.Get("product.plan.duration_days")),
		Recurrence:       normalizer.FirstString(doc, "recurrence.periodicy", "recurrence.periodicity"),
		Amount:           normalizer.Decimal(firstExisting(doc, "price.value", "price", "transaction.value")),
		Currency:         normalizer.FirstString(doc, "price.currency", "currency"),
		PaymentMethod:    normalizer.FirstString(doc, "payment.method", "transaction.payment_method"),
	}
}

// LegacyAdapter reads the flat form-style postback (trans_cod, cus_email).
// It accepts any object and is registered last.
type LegacyAdapter struct{}

func (LegacyAdapter) Provider() string { return string(provider.Eduzz) }
func (LegacyAdapter) Schema() string   { return SchemaLegacy }

func (LegacyAdapter) Detect(gjson.Result) bool { return true }

func (LegacyAdapter) Extract(doc gjson.Result) normalizer.Fields {
	code := normalizer.FirstString(doc, "trans_status")
	eventType := normalizer.FirstString(doc, "event_name")
	if eventType == "" && code != "" {
		eventType = "trans_status." + code
	}

	return normalizer.Fields{
		EventType:        eventType,
		Kind:             LegacyStatusKind(code),
		OccurredAt:       normalizer.FirstTime(doc, "trans_paiddate", "trans_createdate"),
		TransactionID:    normalizer.FirstString(doc, "trans_cod"),
		Email:            normalizer.FirstEmail(doc, "cus_email"),
		BuyerName:        normalizer.FirstString(doc, "cus_name"),
		SubscriptionCode: normalizer.FirstString(doc, "recurrence_cod"),
		PlanIdentifier:   normalizer.FirstString(doc, "recurrence_plan", "product_plan"),
		PlanID:           normalizer.FirstString(doc, "product_cod"),
		Recurrence:       normalizer.FirstString(doc, "recurrence_interval_type"),
		Amount:           normalizer.Decimal(doc.Get("trans_value")),
		Currency:         normalizer.FirstString(doc, "trans_currency"),
		PaymentMethod:    normalizer.FirstString(doc, "trans_paymentmethod"),
	}
}

func firstExisting(doc gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && !v.IsObject() {
			return v
		}
	}
	return gjson.Result{}
}
