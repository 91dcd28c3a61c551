package normalizer

import (
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
)

// Outcome is the variant of a normalization Result.
type Outcome string

const (
	OutcomeValid        Outcome = "valid"
	OutcomeFieldMissing Outcome = "field_missing"
	OutcomeMalformed    Outcome = "malformed"
)

// Result is what Normalize returns. Event is set for Valid results and,
// with whatever could be extracted, for FieldMissing. Err is set for both
// failure variants.
type Result struct {
	Outcome Outcome
	Schema  string
	Event   *entity.PurchaseEvent
	Err     *domainErrors.ParseError
}

func (r Result) Valid() bool {
	return r.Outcome == OutcomeValid
}

// Error returns Err as an error value, nil for Valid results.
func (r Result) Error() error {
	if r.Err == nil {
		return nil
	}
	return r.Err
}

func valid(schema string, event *entity.PurchaseEvent) Result {
	return Result{Outcome: OutcomeValid, Schema: schema, Event: event}
}

func fieldMissing(schema string, partial *entity.PurchaseEvent, err *domainErrors.ParseError) Result {
	return Result{Outcome: OutcomeFieldMissing, Schema: schema, Event: partial, Err: err}
}

func malformed(err *domainErrors.ParseError) Result {
	return Result{Outcome: OutcomeMalformed, Err: err}
}
