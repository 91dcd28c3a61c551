package hotmart

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/normalizer"
)

const (
	SchemaV2 = "hotmart.v2"
	SchemaV1 = "hotmart.v1"
)

// Adapters returns the hotmart payload adapters, most specific first.
func Adapters() []normalizer.PayloadAdapter {
	return []normalizer.PayloadAdapter{V2Adapter{}, V1Adapter{}}
}

// EventKind maps a hotmart event or status name onto its access effect.
// Empty input yields an empty kind.
func EventKind(event string) entity.EventKind {
	switch strings.ToUpper(strings.TrimSpace(event)) {
	case "":
		return ""
	case "PURCHASE_APPROVED", "PURCHASE_COMPLETE", "APPROVED", "COMPLETE", "COMPLETED":
		return entity.EventKindPurchase
	case "PURCHASE_REFUNDED", "REFUNDED":
		return entity.EventKindRefund
	case "PURCHASE_CHARGEBACK", "CHARGEBACK", "PURCHASE_PROTEST", "DISPUTE":
		return entity.EventKindChargeback
	case "SUBSCRIPTION_CANCELLATION", "PURCHASE_CANCELED", "CANCELED", "CANCELLED":
		return entity.EventKindCancellation
	default:
		return entity.EventKindIgnored
	}
}

// V2Adapter reads the versioned webhook body where everything of interest
// sits under data.
type V2Adapter struct{}

func (V2Adapter) Provider() string { return string(provider.Hotmart) }
func (V2Adapter) Schema() string   { return SchemaV2 }

func (V2Adapter) Detect(doc gjson.Result) bool {
	data := doc.Get("data")
	return data.IsObject() && (doc.Get("version").Exists() || doc.Get("event").Exists())
}

func (V2Adapter) Extract(doc gjson.Result) normalizer.Fields {
	data := doc.Get("data")
	event := doc.Get("event").String()

	return normalizer.Fields{
		EventType:        event,
		Kind:             EventKind(event),
		OccurredAt:       normalizer.FirstTime(data, "purchase.approved_date", "purchase.order_date"),
		TransactionID:    normalizer.FirstString(data, "purchase.transaction"),
		Email:            normalizer.FirstEmail(data, "buyer.email"),
		BuyerName:        normalizer.FirstString(data, "buyer.name"),
		SubscriptionCode: normalizer.FirstString(data, "subscription.subscriber.code"),
		PlanIdentifier:   normalizer.FirstString(data, "subscription.plan.name", "purchase.offer.code"),
		PlanID:           normalizer.FirstString(data, "subscription.plan.id", "product.id"),
		DurationDays:     normalizer.Days(data.Get("subscription.plan.recurrency_period")),
		Amount:           normalizer.Decimal(data.Get("purchase.price.value")),
		Currency:         normalizer.FirstString(data, "purchase.price.currency_value"),
		PaymentMethod:    normalizer.FirstString(data, "purchase.payment.type"),
	}
}

// V1Adapter reads the legacy flat postback. It accepts any object and is
// registered last.
type V1Adapter struct{}

func (V1Adapter) Provider() string { return string(provider.Hotmart) }
func (V1Adapter) Schema() string   { return SchemaV1 }

func (V1Adapter) Detect(gjson.Result) bool { return true }

func (V1Adapter) Extract(doc gjson.Result) normalizer.Fields {
	event := normalizer.FirstString(doc, "event", "status")

	return normalizer.Fields{
		EventType:        event,
		Kind:             EventKind(event),
		OccurredAt:       normalizer.FirstTime(doc, "approved_date", "purchase_date", "confirmation_purchase_date"),
		TransactionID:    normalizer.FirstString(doc, "transaction"),
		Email:            normalizer.FirstEmail(doc, "email"),
		BuyerName:        normalizer.FirstString(doc, "name", "first_name"),
		SubscriptionCode: normalizer.FirstString(doc, "subscriber_code"),
		PlanIdentifier:   normalizer.FirstString(doc, "name_subscription_plan", "plan_name", "off"),
		PlanID:           normalizer.FirstString(doc, "subscription_plan_id", "prod"),
		DurationDays:     normalizer.Days(doc.Get("recurrency_period")),
		Amount:           normalizer.Decimal(doc.Get("price")),
		Currency:         normalizer.FirstString(doc, "currency", "currency_code"),
		PaymentMethod:    normalizer.FirstString(doc, "payment_type"),
	}
}
