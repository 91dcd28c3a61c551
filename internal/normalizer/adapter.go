package normalizer

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
)

// PayloadAdapter reads one provider schema version. Adapters only consult
// their known field paths; the Normalizer runs the tree search for anything
// they leave empty.
type PayloadAdapter interface {
	Provider() string
	Schema() string
	// Detect reports whether doc has this schema's shape.
	Detect(doc gjson.Result) bool
	Extract(doc gjson.Result) Fields
}

// Fields is what an adapter's fast paths found.
type Fields struct {
	EventType  string
	Kind       entity.EventKind
	OccurredAt time.Time

	TransactionID    string
	Email            string
	BuyerName        string
	SubscriptionCode string

	PlanIdentifier string
	PlanID         string
	DurationDays   *int
	// Recurrence is the provider's billing period name, e.g. "yearly".
	Recurrence string

	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
}

// FirstString returns the first non-empty string or number at paths.
func FirstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := scalarID(doc.Get(p)); s != "" {
			return s
		}
	}
	return ""
}

// FirstEmail returns the first value at paths that looks like an address.
func FirstEmail(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); looksLikeEmail(v) {
			return strings.TrimSpace(v.Str)
		}
	}
	return ""
}

// Decimal reads a price that may be a JSON number or a numeric string.
func Decimal(v gjson.Result) decimal.Decimal {
	switch v.Type {
	case gjson.Number:
		if d, err := decimal.NewFromString(v.Raw); err == nil {
			return d
		}
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", ".")
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// Days reads a positive day count.
func Days(v gjson.Result) *int {
	if !v.Exists() {
		return nil
	}
	n := int(v.Int())
	if n <= 0 {
		return nil
	}
	return &n
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time reads a timestamp given as epoch seconds, epoch milliseconds or one
// of the common string layouts. Unparseable values give the zero time.
func Time(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		return epoch(v.Int())
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return time.Time{}
		}
		if isNumericString(v) {
			return epoch(v.Int())
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

func epoch(n int64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	// Values past year 2286 in seconds are milliseconds.
	if n > 9_999_999_999 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// FirstTime returns the first parseable timestamp at paths.
func FirstTime(doc gjson.Result, paths ...string) time.Time {
	for _, p := range paths {
		if t := Time(doc.Get(p)); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
