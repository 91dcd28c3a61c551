package usecase

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/normalizer"
	"go.uber.org/zap"
)

// searchDepth bounds the JSON walk over stored payloads.
const searchDepth = 16

// ledgerEmailPaths are where the supported providers put the buyer email.
var ledgerEmailPaths = [][]string{
	{"email"},
	{"buyer", "email"},
	{"data", "buyer", "email"},
	{"customer", "email"},
	{"cus_email"},
	{"data", "object", "customer_email"},
	{"data", "object", "customer_details", "email"},
	{"data", "object", "receipt_email"},
}

// DiagnosticsService searches the audit trail for a term, usually an email.
type DiagnosticsService struct {
	logs          repository.WebhookLogRepository
	subscriptions repository.SubscriptionRepository
	logger        *zap.Logger
}

// NewDiagnosticsService creates a new diagnostics service
func NewDiagnosticsService(logs repository.WebhookLogRepository, subscriptions repository.SubscriptionRepository, logger *zap.Logger) *DiagnosticsService {
	return &DiagnosticsService{
		logs:          logs,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// Search finds webhook logs whose extracted email or raw payload contains
// term. Each candidate from the indexed text search is then walked as JSON
// to say where the term sits: an email field holding exactly the term is a
// direct_field match, anything else a text_match.
func (s *DiagnosticsService) Search(ctx context.Context, term string, limit int) (*entity.DiagnosticReport, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domainErrors.ErrEmptySearchTerm
	}

	candidates, err := s.logs.SearchPayload(ctx, term, limit)
	if err != nil {
		return nil, err
	}

	report := &entity.DiagnosticReport{
		Term:    term,
		Matches: make([]entity.DiagnosticMatch, 0, len(candidates)),
	}
	for _, rec := range candidates {
		report.Matches = append(report.Matches, classify(rec, term))
	}

	if strings.Contains(term, "@") {
		if report.Account, err = s.subscriptions.GetUserByEmail(ctx, term); err != nil {
			return nil, err
		}
		if report.Account != nil {
			report.Ledger, err = s.subscriptions.ListByUser(ctx, report.Account.ID)
		} else {
			// no account yet; ledger rows may still name the email
			report.Ledger, err = s.subscriptions.FindByPayloadEmail(ctx, model.NormalizeEmail(term), ledgerEmailPaths, limit)
		}
		if err != nil {
			return nil, err
		}
	}

	s.logger.Info("Diagnostics search",
		zap.String("term", term),
		zap.Int("matches", len(report.Matches)),
		zap.Bool("account_found", report.Account != nil))
	return report, nil
}

func classify(rec *model.WebhookLog, term string) entity.DiagnosticMatch {
	match := entity.DiagnosticMatch{Log: rec, MatchType: entity.MatchTextMatch}
	needle := strings.ToLower(term)

	if rec.ExtractedEmail != nil && strings.EqualFold(*rec.ExtractedEmail, term) {
		match.MatchType = entity.MatchDirectField
		match.MatchedPaths = append(match.MatchedPaths, "extracted_email")
	}

	if !gjson.Valid(rec.RawPayload) {
		return match
	}
	normalizer.Walk(gjson.Parse(rec.RawPayload), searchDepth, func(path, key string, v gjson.Result, _ int) bool {
		if v.Type != gjson.String {
			return true
		}
		value := strings.ToLower(strings.TrimSpace(v.Str))
		if !strings.Contains(value, needle) {
			return true
		}
		match.MatchedPaths = append(match.MatchedPaths, path)
		if value == needle && strings.Contains(strings.ToLower(key), "email") {
			match.MatchType = entity.MatchDirectField
		}
		return true
	})
	return match
}
