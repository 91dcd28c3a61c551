package stripe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/normalizer"
	"go.uber.org/zap"
)

func newNormalizer() *normalizer.Normalizer {
	n := normalizer.New(zap.NewNop())
	n.Register(Adapters()...)
	return n
}

func TestEventAdapter_CheckoutCompleted(t *testing.T) {
	body := `{
	  "id": "evt_1", "object": "event", "type": "checkout.session.completed", "created": 1700000000,
	  "data": {"object": {
	    "id": "cs_1", "object": "checkout.session",
	    "payment_status": "paid",
	    "payment_intent": "pi_1",
	    "customer_details": {"email": "Stripe@X.com", "name": "Rui"},
	    "amount_total": 9900, "currency": "usd",
	    "payment_method_types": ["card"],
	    "metadata": {"plan": "premium_180"}
	  }}
	}`

	res := newNormalizer().Normalize("stripe", []byte(body))
	require.True(t, res.Valid(), res.Error())

	ev := res.Event
	assert.Equal(t, SchemaEvent, ev.SchemaVersion)
	assert.Equal(t, entity.EventKindPurchase, ev.Kind)
	assert.Equal(t, "pi_1", ev.TransactionID)
	assert.Equal(t, "stripe@x.com", ev.SubscriberEmail)
	assert.Equal(t, "Rui", ev.BuyerName)
	assert.Equal(t, entity.PlanPremium180, ev.PlanIdentifier)
	assert.Equal(t, "99", ev.Amount.String())
	assert.Equal(t, "USD", ev.Currency)
	assert.Equal(t, "card", ev.PaymentMethod)
	assert.Equal(t, int64(1700000000), ev.OccurredAt.Unix())
}

func TestEventAdapter_UnpaidCheckoutIsIgnored(t *testing.T) {
	body := `{"id":"evt_2","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_2","payment_status":"unpaid","customer_email":"a@x.com"}}}`

	res := newNormalizer().Normalize("stripe", []byte(body))
	require.True(t, res.Valid())
	assert.Equal(t, entity.EventKindIgnored, res.Event.Kind)
}

func TestEventAdapter_InvoicePaidYearly(t *testing.T) {
	body := `{
	  "id": "evt_3", "object": "event", "type": "invoice.paid", "created": 1700000000,
	  "data": {"object": {
	    "id": "in_1", "object": "invoice",
	    "customer_email": "sub@x.com",
	    "payment_intent": "pi_9",
	    "subscription": "sub_1",
	    "amount_paid": 120000, "currency": "brl",
	    "status_transitions": {"paid_at": 1700000100},
	    "lines": {"object": "list", "data": [
	      {"id": "il_1", "price": {"id": "price_1", "lookup_key": "gold_annual", "recurring": {"interval": "year", "interval_count": 1}}}
	    ]}
	  }}
	}`

	res := newNormalizer().Normalize("stripe", []byte(body))
	require.True(t, res.Valid(), res.Error())

	ev := res.Event
	assert.Equal(t, "pi_9", ev.TransactionID)
	assert.Equal(t, "sub_1", ev.SubscriptionCode)
	assert.Equal(t, "gold_annual", ev.PlanIdentifier)
	assert.Equal(t, "price_1", ev.PlanID)
	assert.Equal(t, 12, ev.PlanMonths)
	assert.Equal(t, int64(1700000100), ev.OccurredAt.Unix())
	assert.Equal(t, "1200", ev.Amount.String())
}

func TestEventAdapter_ChargeRefunded(t *testing.T) {
	body := `{"id":"evt_4","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_1","amount_refunded":9900,"currency":"usd","billing_details":{"email":"r@x.com"}}}}`

	res := newNormalizer().Normalize("stripe", []byte(body))
	require.True(t, res.Valid(), res.Error())
	assert.Equal(t, entity.EventKindRefund, res.Event.Kind)
	assert.Equal(t, "pi_1", res.Event.TransactionID)
	assert.Equal(t, "r@x.com", res.Event.SubscriberEmail)
}

func TestEventAdapter_DisputeCreated(t *testing.T) {
	body := `{"id":"evt_5","object":"event","type":"charge.dispute.created","data":{"object":{"id":"dp_1","object":"dispute","charge":"ch_1","payment_intent":"pi_1","amount":9900,"currency":"usd","evidence":{"customer_email_address":"d@x.com"}}}}`

	res := newNormalizer().Normalize("stripe", []byte(body))
	require.True(t, res.Valid(), res.Error())
	assert.Equal(t, entity.EventKindChargeback, res.Event.Kind)
	assert.Equal(t, "pi_1", res.Event.TransactionID)
	assert.Equal(t, "d@x.com", res.Event.SubscriberEmail)
}

func TestEventAdapter_OtherEventsIgnored(t *testing.T) {
	body := `{"id":"evt_6","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`

	res := newNormalizer().Normalize("stripe", []byte(body))
	require.True(t, res.Valid())
	assert.Equal(t, entity.EventKindIgnored, res.Event.Kind)
	assert.Equal(t, "customer.created", res.Event.EventType)
}

func TestRecurrence(t *testing.T) {
	name, d := recurrence(&stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalMonth, IntervalCount: 3})
	assert.Equal(t, "quarterly", name)
	assert.Nil(t, d)

	name, d = recurrence(&stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalWeek, IntervalCount: 2})
	assert.Empty(t, name)
	require.NotNil(t, d)
	assert.Equal(t, 14, *d)
}
