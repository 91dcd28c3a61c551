package errors

import "errors"

var (
	// ErrDuplicateTransaction means the transaction id already has a ledger row.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrStatusRegression is returned when a log record is already at or past
	// the requested status.
	ErrStatusRegression = errors.New("webhook log status cannot move backwards")

	// ErrPayloadUnparseable matches every *ParseError via errors.Is.
	ErrPayloadUnparseable = errors.New("payload unparseable")

	ErrUnknownProvider    = errors.New("unknown provider")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrLogNotFound        = errors.New("webhook log not found")
	ErrUserNotFound       = errors.New("user account not found")
	ErrDeliveryNotFound   = errors.New("relay delivery not found")
	ErrCredentialsMissing = errors.New("provider credentials not configured")
	ErrLookupUnsupported  = errors.New("provider does not support purchase lookup")
	ErrDownstreamAuth     = errors.New("provider authentication failed")
	ErrPurchaseNotFound   = errors.New("purchase not found at provider")
	ErrEmptySearchTerm    = errors.New("search term is required")
)
