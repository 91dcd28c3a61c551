package entity

import "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"

// MatchType says where a diagnostics search term was found.
type MatchType string

const (
	// MatchDirectField: the term is the record's extracted email, or the
	// value of an email field inside the payload.
	MatchDirectField MatchType = "direct_field"
	// MatchTextMatch: the term only occurs as text somewhere in the payload.
	MatchTextMatch MatchType = "text_match"
)

// DiagnosticMatch is one webhook log found by a diagnostics search.
type DiagnosticMatch struct {
	Log          *model.WebhookLog `json:"log"`
	MatchType    MatchType         `json:"match_type"`
	MatchedPaths []string          `json:"matched_paths,omitempty"`
}

// DiagnosticReport is the full answer to a diagnostics search.
type DiagnosticReport struct {
	Term    string                      `json:"term"`
	Matches []DiagnosticMatch           `json:"matches"`
	Account *model.UserAccount          `json:"account,omitempty"`
	Ledger  []*model.SubscriptionRecord `json:"ledger,omitempty"`
}
