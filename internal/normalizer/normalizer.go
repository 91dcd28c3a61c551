package normalizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"go.uber.org/zap"
)

// Normalizer turns provider payloads into PurchaseEvents.
type Normalizer struct {
	mu       sync.RWMutex
	adapters map[string][]PayloadAdapter
	aliases  map[string]string
	maxDepth int
	logger   *zap.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithPlanAliases maps provider plan names (case-insensitive) to canonical
// plan identifiers before the plan table lookup.
func WithPlanAliases(aliases map[string]string) Option {
	return func(n *Normalizer) {
		for k, v := range aliases {
			n.aliases[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
}

// WithMaxDepth overrides the tree search depth.
func WithMaxDepth(depth int) Option {
	return func(n *Normalizer) {
		if depth > 0 {
			n.maxDepth = depth
		}
	}
}

func New(logger *zap.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{
		adapters: make(map[string][]PayloadAdapter),
		aliases:  make(map[string]string),
		maxDepth: DefaultMaxDepth,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Register adds an adapter. Adapters of one provider are tried in
// registration order, so register the most specific shape first and the
// catch-all last.
func (n *Normalizer) Register(adapters ...PayloadAdapter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range adapters {
		p := strings.ToLower(a.Provider())
		n.adapters[p] = append(n.adapters[p], a)
	}
}

// Supports reports whether any adapter is registered for provider.
func (n *Normalizer) Supports(provider string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.adapters[strings.ToLower(provider)]) > 0
}

// Providers lists registered provider names in sorted order.
func (n *Normalizer) Providers() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.adapters))
	for p := range n.adapters {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Detect picks the adapter for doc.
func (n *Normalizer) Detect(provider string, doc gjson.Result) (PayloadAdapter, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	candidates := n.adapters[strings.ToLower(provider)]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrUnknownProvider, provider)
	}
	for _, a := range candidates {
		if a.Detect(doc) {
			return a, nil
		}
	}
	return candidates[len(candidates)-1], nil
}

// Normalize parses body as provider's webhook. It never panics on input
// shape; every failure is reported through the Result.
func (n *Normalizer) Normalize(provider string, body []byte) Result {
	provider = strings.ToLower(provider)

	if !gjson.ValidBytes(body) {
		return malformed(domainErrors.NewMalformed(provider, errors.New("body is not valid JSON")))
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return malformed(domainErrors.NewMalformed(provider, errors.New("body is not a JSON object")))
	}

	adapter, err := n.Detect(provider, doc)
	if err != nil {
		return malformed(domainErrors.NewMalformed(provider, err))
	}
	schema := adapter.Schema()
	fields := adapter.Extract(doc)

	if fields.Email == "" {
		if m, ok := SearchEmail(doc, n.maxDepth); ok {
			fields.Email = strings.TrimSpace(m.Value.Str)
			n.logger.Debug("Email located by tree search",
				zap.String("provider", provider),
				zap.String("schema", schema),
				zap.String("path", m.Path))
		}
	}
	if fields.TransactionID == "" {
		if m, ok := SearchTransaction(doc, n.maxDepth); ok {
			fields.TransactionID = scalarID(m.Value)
			n.logger.Debug("Transaction located by tree search",
				zap.String("provider", provider),
				zap.String("schema", schema),
				zap.String("path", m.Path))
		}
	}
	if fields.DurationDays == nil {
		if d, ok := SearchDurationDays(doc, n.maxDepth); ok {
			fields.DurationDays = &d
		}
	}
	if !n.KnownPlan(fields.PlanIdentifier) {
		if m, ok := SearchPlanIdentifier(doc, n.maxDepth, n.KnownPlan); ok {
			n.logger.Debug("Plan located by tree search",
				zap.String("provider", provider),
				zap.String("schema", schema),
				zap.String("path", m.Path),
				zap.String("adapter_plan", fields.PlanIdentifier))
			fields.PlanIdentifier = strings.TrimSpace(m.Value.Str)
		}
	}

	// Non-access events need not identify a buyer; they are skipped.
	ignorable := fields.Kind == entity.EventKindIgnored && fields.EventType != ""

	event := &entity.PurchaseEvent{
		EventType:        fields.EventType,
		Kind:             fields.Kind,
		OccurredAt:       fields.OccurredAt,
		ProviderName:     provider,
		SchemaVersion:    schema,
		TransactionID:    fields.TransactionID,
		SubscriberEmail:  model.NormalizeEmail(fields.Email),
		BuyerName:        fields.BuyerName,
		SubscriptionCode: fields.SubscriptionCode,
		PlanID:           fields.PlanID,
		Amount:           fields.Amount,
		Currency:         strings.ToUpper(fields.Currency),
		PaymentMethod:    fields.PaymentMethod,
		RawPayload:       body,
	}

	if ignorable {
		event.PlanIdentifier = firstNonEmpty(fields.PlanIdentifier, fields.PlanID)
		return valid(schema, event)
	}

	switch {
	case event.SubscriberEmail == "":
		return fieldMissing(schema, event, domainErrors.NewFieldMissing(provider, schema, "subscriber_email"))
	case event.TransactionID == "":
		return fieldMissing(schema, event, domainErrors.NewFieldMissing(provider, schema, "transaction_id"))
	}

	if event.Kind == "" {
		event.Kind = entity.EventKindIgnored
	}
	if event.Kind == entity.EventKindPurchase {
		n.applyPlan(event, fields)
	} else {
		event.PlanIdentifier = firstNonEmpty(fields.PlanIdentifier, fields.PlanID)
	}

	return valid(schema, event)
}

func (n *Normalizer) applyPlan(event *entity.PurchaseEvent, fields Fields) {
	term := n.ResolvePlan(fields.PlanIdentifier, fields.DurationDays, fields.Recurrence)
	event.PlanIdentifier = term.PlanType
	event.PlanDurationDays = term.Days
	event.PlanMonths = term.Months
	event.IsLifetime = term.Lifetime
	event.DurationDefaulted = term.Defaulted

	if term.Defaulted {
		n.logger.Warn("Plan duration not recognized, defaulting",
			zap.String("provider", event.ProviderName),
			zap.String("plan", fields.PlanIdentifier),
			zap.String("transaction_id", event.TransactionID),
			zap.Int("default_days", entity.DefaultPlanDurationDays))
	}
}

// KnownPlan reports whether id names a plan in the plan table, directly or
// through a configured alias.
func (n *Normalizer) KnownPlan(id string) bool {
	raw := strings.TrimSpace(id)
	if raw == "" {
		return false
	}
	if alias, ok := n.aliases[strings.ToLower(raw)]; ok {
		raw = alias
	}
	_, ok := entity.LookupPlan(raw)
	return ok
}

// ResolvePlan applies, in order: alias mapping and the plan table, an
// explicit day count, a calendar recurrence, and finally the default term.
func (n *Normalizer) ResolvePlan(planID string, durationDays *int, recurrence string) entity.PlanTerm {
	raw := strings.TrimSpace(planID)
	canonical := raw
	if alias, ok := n.aliases[strings.ToLower(raw)]; ok {
		canonical = alias
	}
	if term, ok := entity.LookupPlan(canonical); ok {
		return term
	}

	if durationDays != nil && *durationDays > 0 {
		d := *durationDays
		return entity.PlanTerm{PlanType: firstNonEmpty(raw, fmt.Sprintf("premium_%d", d)), Days: &d}
	}

	if months, label, ok := recurrenceMonths(recurrence); ok {
		return entity.PlanTerm{PlanType: firstNonEmpty(raw, "premium_"+label), Months: months}
	}

	d := entity.DefaultPlanDurationDays
	return entity.PlanTerm{
		PlanType:  firstNonEmpty(raw, entity.PlanPremium30),
		Days:      &d,
		Defaulted: true,
	}
}

func recurrenceMonths(recurrence string) (int, string, bool) {
	switch strings.ToLower(strings.TrimSpace(recurrence)) {
	case "monthly", "month", "mensal":
		return 1, "monthly", true
	case "bimonthly", "bimestral":
		return 2, "bimonthly", true
	case "quarterly", "trimestral":
		return 3, "quarterly", true
	case "semiannual", "semiannually", "semestral":
		return 6, "semiannual", true
	case "yearly", "annual", "annually", "anual", "year":
		return 12, "yearly", true
	default:
		return 0, "", false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
