package stripe

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/tidwall/gjson"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/normalizer"
)

const SchemaEvent = "stripe.event"

// Adapters returns the stripe payload adapters.
func Adapters() []normalizer.PayloadAdapter {
	return []normalizer.PayloadAdapter{EventAdapter{}}
}

// EventAdapter reads stripe Event objects. The transaction id is the
// payment intent when there is one, so a refund or dispute lands on the
// same key family as the purchase it reverses.
type EventAdapter struct{}

func (EventAdapter) Provider() string { return string(provider.Stripe) }
func (EventAdapter) Schema() string   { return SchemaEvent }

func (EventAdapter) Detect(doc gjson.Result) bool {
	return doc.Get("type").Exists() && doc.Get("data.object").IsObject()
}

func (EventAdapter) Extract(doc gjson.Result) normalizer.Fields {
	var event stripe.Event
	if err := json.Unmarshal([]byte(doc.Raw), &event); err != nil || event.Data == nil {
		// Leave everything to the tree search.
		return normalizer.Fields{EventType: doc.Get("type").String()}
	}

	f := normalizer.Fields{
		EventType:  string(event.Type),
		OccurredAt: unix(event.Created),
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return f
		}
		fromCheckoutSession(&f, &s)

	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentSucceeded:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return f
		}
		fromInvoice(&f, &inv)

	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return f
		}
		f.Kind = entity.EventKindRefund
		f.TransactionID = chargeTransaction(&ch)
		f.Amount = minorUnits(ch.AmountRefunded)
		f.Currency = string(ch.Currency)
		f.Email = ch.ReceiptEmail
		if ch.BillingDetails != nil {
			f.Email = firstNonEmpty(f.Email, ch.BillingDetails.Email)
			f.BuyerName = ch.BillingDetails.Name
		}

	case stripe.EventTypeChargeDisputeCreated:
		var d stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &d); err != nil {
			return f
		}
		f.Kind = entity.EventKindChargeback
		switch {
		case d.PaymentIntent != nil && d.PaymentIntent.ID != "":
			f.TransactionID = d.PaymentIntent.ID
		case d.Charge != nil:
			f.TransactionID = d.Charge.ID
		}
		f.Amount = minorUnits(d.Amount)
		f.Currency = string(d.Currency)
		if d.Evidence != nil {
			f.Email = d.Evidence.CustomerEmailAddress
			f.BuyerName = d.Evidence.CustomerName
		}

	default:
		f.Kind = entity.EventKindIgnored
	}
	return f
}

func fromCheckoutSession(f *normalizer.Fields, s *stripe.CheckoutSession) {
	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		f.Kind = entity.EventKindPurchase
	default:
		// Async methods (boleto, pix) complete later with a separate event.
		f.Kind = entity.EventKindIgnored
	}

	f.TransactionID = s.ID
	if s.PaymentIntent != nil && s.PaymentIntent.ID != "" {
		f.TransactionID = s.PaymentIntent.ID
	} else if s.Invoice != nil && s.Invoice.ID != "" {
		f.TransactionID = s.Invoice.ID
	}
	f.Email = s.CustomerEmail
	if s.CustomerDetails != nil {
		f.Email = firstNonEmpty(s.CustomerDetails.Email, f.Email)
		f.BuyerName = s.CustomerDetails.Name
	}
	if s.Subscription != nil {
		f.SubscriptionCode = s.Subscription.ID
	}
	f.PlanIdentifier = firstNonEmpty(s.Metadata["plan"], s.Metadata["plan_type"])
	f.PlanID = s.Metadata["plan_id"]
	f.Amount = minorUnits(s.AmountTotal)
	f.Currency = string(s.Currency)
	if len(s.PaymentMethodTypes) > 0 {
		f.PaymentMethod = s.PaymentMethodTypes[0]
	}
}

func fromInvoice(f *normalizer.Fields, inv *stripe.Invoice) {
	f.Kind = entity.EventKindPurchase
	f.TransactionID = inv.ID
	if inv.PaymentIntent != nil && inv.PaymentIntent.ID != "" {
		f.TransactionID = inv.PaymentIntent.ID
	}
	f.Email = inv.CustomerEmail
	f.BuyerName = inv.CustomerName
	if inv.Subscription != nil {
		f.SubscriptionCode = inv.Subscription.ID
	}
	if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
		f.OccurredAt = unix(inv.StatusTransitions.PaidAt)
	}
	f.Amount = minorUnits(inv.AmountPaid)
	f.Currency = string(inv.Currency)
	f.PlanIdentifier = inv.Metadata["plan"]

	if inv.Lines == nil || len(inv.Lines.Data) == 0 || inv.Lines.Data[0].Price == nil {
		return
	}
	price := inv.Lines.Data[0].Price
	f.PlanID = price.ID
	f.PlanIdentifier = firstNonEmpty(f.PlanIdentifier, price.LookupKey, price.Nickname)
	if price.Recurring != nil {
		f.Recurrence, f.DurationDays = recurrence(price.Recurring)
	}
}

// recurrence turns a price interval into a named calendar recurrence, or a
// day count when no name fits.
func recurrence(r *stripe.PriceRecurring) (string, *int) {
	count := r.IntervalCount
	if count <= 0 {
		count = 1
	}
	switch r.Interval {
	case stripe.PriceRecurringIntervalYear:
		if count == 1 {
			return "yearly", nil
		}
		return days(int(count) * 365)
	case stripe.PriceRecurringIntervalMonth:
		switch count {
		case 1:
			return "monthly", nil
		case 2:
			return "bimonthly", nil
		case 3:
			return "quarterly", nil
		case 6:
			return "semiannual", nil
		case 12:
			return "yearly", nil
		}
		return days(int(count) * 30)
	case stripe.PriceRecurringIntervalWeek:
		return days(int(count) * 7)
	case stripe.PriceRecurringIntervalDay:
		return days(int(count))
	}
	return "", nil
}

func days(n int) (string, *int) { return "", &n }

func chargeTransaction(ch *stripe.Charge) string {
	if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
		return ch.PaymentIntent.ID
	}
	return ch.ID
}

// minorUnits converts an amount in the currency's smallest unit.
func minorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

func unix(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
