package hotmart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/normalizer"
	"go.uber.org/zap"
)

const v2Approved = `{
  "id": "evt-1",
  "creation_date": 1700000000000,
  "event": "PURCHASE_APPROVED",
  "version": "2.0.0",
  "data": {
    "product": {"id": 123, "name": "Course"},
    "buyer": {"email": "Buyer@Example.com", "name": "Ana"},
    "purchase": {
      "transaction": "HP1234",
      "approved_date": 1700000000000,
      "status": "APPROVED",
      "price": {"value": 497.0, "currency_value": "brl"},
      "payment": {"type": "CREDIT_CARD"},
      "offer": {"code": "premium_365"}
    },
    "subscription": {"subscriber": {"code": "SUB1"}, "plan": {"id": 9, "name": "premium_365"}}
  }
}`

func newNormalizer() *normalizer.Normalizer {
	n := normalizer.New(zap.NewNop())
	n.Register(Adapters()...)
	return n
}

func TestV2Adapter(t *testing.T) {
	res := newNormalizer().Normalize("hotmart", []byte(v2Approved))
	require.True(t, res.Valid(), res.Error())

	ev := res.Event
	assert.Equal(t, SchemaV2, ev.SchemaVersion)
	assert.Equal(t, entity.EventKindPurchase, ev.Kind)
	assert.Equal(t, "buyer@example.com", ev.SubscriberEmail)
	assert.Equal(t, "HP1234", ev.TransactionID)
	assert.Equal(t, "Ana", ev.BuyerName)
	assert.Equal(t, "SUB1", ev.SubscriptionCode)
	assert.Equal(t, entity.PlanPremium365, ev.PlanIdentifier)
	assert.Equal(t, "9", ev.PlanID)
	assert.Equal(t, "497", ev.Amount.String())
	assert.Equal(t, "BRL", ev.Currency)
	assert.Equal(t, "CREDIT_CARD", ev.PaymentMethod)
	assert.Equal(t, int64(1700000000), ev.OccurredAt.Unix())
}

func TestV1Adapter_NestedBuyerFallsBackToSearch(t *testing.T) {
	body := `{"event":"PURCHASE_APPROVED","buyer":{"email":"new@x.com"},"transaction":"T1"}`

	res := newNormalizer().Normalize("hotmart", []byte(body))
	require.True(t, res.Valid(), res.Error())

	assert.Equal(t, SchemaV1, res.Event.SchemaVersion)
	assert.Equal(t, "new@x.com", res.Event.SubscriberEmail)
	assert.Equal(t, "T1", res.Event.TransactionID)
}

func TestV1Adapter_FlatPostback(t *testing.T) {
	body := `{"status":"approved","email":"flat@x.com","transaction":"HP9","prod":"55","off":"premium_30","price":"47.90","currency":"BRL","payment_type":"billet"}`

	res := newNormalizer().Normalize("hotmart", []byte(body))
	require.True(t, res.Valid(), res.Error())

	ev := res.Event
	assert.Equal(t, entity.EventKindPurchase, ev.Kind)
	assert.Equal(t, "approved", ev.EventType)
	assert.Equal(t, entity.PlanPremium30, ev.PlanIdentifier)
	assert.Equal(t, "55", ev.PlanID)
	assert.Equal(t, "47.9", ev.Amount.String())
	assert.Equal(t, "billet", ev.PaymentMethod)
}

func TestEventKind(t *testing.T) {
	tests := map[string]entity.EventKind{
		"PURCHASE_APPROVED":         entity.EventKindPurchase,
		"purchase_complete":         entity.EventKindPurchase,
		"PURCHASE_REFUNDED":         entity.EventKindRefund,
		"PURCHASE_CHARGEBACK":       entity.EventKindChargeback,
		"SUBSCRIPTION_CANCELLATION": entity.EventKindCancellation,
		"PURCHASE_DELAYED":          entity.EventKindIgnored,
		"":                          "",
	}
	for event, kind := range tests {
		assert.Equal(t, kind, EventKind(event), event)
	}
}

func TestV2Adapter_Detect(t *testing.T) {
	n := newNormalizer()

	res := n.Normalize("hotmart", []byte(`{"event":"PURCHASE_REFUNDED","data":{"buyer":{"email":"r@x.com"},"purchase":{"transaction":"HP1"}}}`))
	require.True(t, res.Valid())
	assert.Equal(t, SchemaV2, res.Event.SchemaVersion)
	assert.Equal(t, entity.EventKindRefund, res.Event.Kind)

	res = n.Normalize("hotmart", []byte(`{"data":"not an object","email":"a@x.com","transaction":"T"}`))
	require.True(t, res.Valid())
	assert.Equal(t, SchemaV1, res.Event.SchemaVersion)
}
