package errors

import "fmt"

// ParseKind distinguishes why a payload could not be normalized.
type ParseKind string

const (
	// ParseMalformed: the body is not a JSON object at all.
	ParseMalformed ParseKind = "malformed"
	// ParseFieldMissing: valid JSON, but a required field was not found by
	// the fast path or the tree search.
	ParseFieldMissing ParseKind = "field_missing"
)

// ParseError describes a payload that could not become a PurchaseEvent.
type ParseError struct {
	Kind     ParseKind
	Provider string
	Schema   string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case ParseFieldMissing:
		return fmt.Sprintf("%s payload (%s): required field %q not found", e.Provider, e.Schema, e.Field)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s payload is malformed: %v", e.Provider, e.Err)
		}
		return fmt.Sprintf("%s payload is malformed", e.Provider)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrPayloadUnparseable
}

// NewMalformed builds a ParseError for an undecodable body.
func NewMalformed(provider string, err error) *ParseError {
	return &ParseError{Kind: ParseMalformed, Provider: provider, Err: err}
}

// NewFieldMissing builds a ParseError for an absent required field.
func NewFieldMissing(provider, schema, field string) *ParseError {
	return &ParseError{Kind: ParseFieldMissing, Provider: provider, Schema: schema, Field: field}
}
