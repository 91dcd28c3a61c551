package provider

import (
	"context"
	"encoding/json"
)

// Name identifies a webhook source.
type Name string

const (
	Hotmart Name = "hotmart"
	Eduzz   Name = "eduzz"
	Stripe  Name = "stripe"
)

// PurchaseLookup is a provider's answer to an on-demand purchase query.
type PurchaseLookup struct {
	Provider      Name            `json:"provider"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Raw           json.RawMessage `json:"raw"`
	// Payload is Raw rearranged into the provider's webhook shape so it can
	// run through the normal pipeline.
	Payload json.RawMessage `json:"-"`
}

// LookupClient queries a provider's API outside the webhook path. Calls
// authenticate with the OAuth client-credentials grant and are bounded by
// the configured timeout.
type LookupClient interface {
	LookupPurchase(ctx context.Context, transactionID string) (*PurchaseLookup, error)
	Provider() Name
}

// Error codes carried by ProviderError.
const (
	CodeAuthFailed    = "AUTH_FAILED"
	CodeRequestError  = "REQUEST_ERROR"
	CodeAPIError      = "API_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeResponseError = "RESPONSE_ERROR"
	CodeParseError    = "PARSE_ERROR"
	CodeTimeout       = "TIMEOUT"
)

// ProviderError describes a failed outbound provider call.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
