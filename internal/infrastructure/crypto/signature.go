package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

// Signature schemes accepted in provider configuration.
const (
	SchemeHMACSHA256Hex    = "hmac-sha256-hex"
	SchemeHMACSHA256Base64 = "hmac-sha256-base64"
	// SchemeToken compares the header to the shared secret directly.
	SchemeToken = "token"
	// SchemeStripe validates a Stripe-Signature header (t=...,v1=...).
	SchemeStripe = "stripe"
)

// StripeTolerance is how old a stripe signature timestamp may be.
const StripeTolerance = 5 * time.Minute

// RelayedStripeTolerance covers calls the relay queued or an operator
// redelivered. It matches the three days Stripe itself keeps retrying.
const RelayedStripeTolerance = 72 * time.Hour

// VerifySignature checks header against body signed with secret. It never
// errors: an empty secret or header, an unknown scheme, and every decode
// failure simply report false.
func VerifySignature(scheme string, body []byte, header, secret string) bool {
	return VerifySignatureWithin(scheme, body, header, secret, StripeTolerance)
}

// VerifySignatureWithin is VerifySignature with the stripe timestamp window
// set by the caller. Other schemes carry no timestamp and ignore it.
func VerifySignatureWithin(scheme string, body []byte, header, secret string, stripeTolerance time.Duration) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}

	switch scheme {
	case SchemeHMACSHA256Hex:
		got, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(header), "sha256="))
		if err != nil {
			return false
		}
		return hmac.Equal(got, sign(body, secret))

	case SchemeHMACSHA256Base64:
		got, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "sha256="))
		if err != nil {
			return false
		}
		return hmac.Equal(got, sign(body, secret))

	case SchemeToken:
		return hmac.Equal([]byte(header), []byte(secret))

	case SchemeStripe:
		return webhook.ValidatePayloadWithTolerance(body, header, secret, stripeTolerance) == nil

	default:
		return false
	}
}

func sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
