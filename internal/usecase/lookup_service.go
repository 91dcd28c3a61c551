package usecase

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// LookupClientFactory resolves a provider's lookup client.
type LookupClientFactory interface {
	GetLookupClient(name string) (provider.LookupClient, error)
}

// LookupService queries providers on demand and can push the answer
// through the pipeline.
type LookupService struct {
	clients   LookupClientFactory
	audit     *AuditLogger
	processor RecordProcessor
	logger    *zap.Logger
}

// NewLookupService creates a new lookup service
func NewLookupService(clients LookupClientFactory, audit *AuditLogger, processor RecordProcessor, logger *zap.Logger) *LookupService {
	return &LookupService{
		clients:   clients,
		audit:     audit,
		processor: processor,
		logger:    logger,
	}
}

// Lookup fetches one purchase from the provider. Failures are returned to
// the caller as is; nothing retries them.
func (s *LookupService) Lookup(ctx context.Context, providerName, transactionID string) (*provider.PurchaseLookup, error) {
	client, err := s.clients.GetLookupClient(providerName)
	if err != nil {
		return nil, err
	}

	result, err := client.LookupPurchase(ctx, transactionID)
	if err != nil {
		metrics.ProviderLookups.WithLabelValues(providerName, lookupResult(err)).Inc()
		s.logger.Warn("Provider lookup failed",
			zap.String("provider", providerName),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil, err
	}

	metrics.ProviderLookups.WithLabelValues(providerName, "ok").Inc()
	return result, nil
}

// Reconcile looks the purchase up and runs it through the pipeline as a new
// record with origin lookup. It waits for the pipeline and returns the
// record in its final state.
func (s *LookupService) Reconcile(ctx context.Context, providerName, transactionID string) (*model.WebhookLog, error) {
	result, err := s.Lookup(ctx, providerName, transactionID)
	if err != nil {
		return nil, err
	}

	// The payload came from an authenticated API call, not an unsigned POST.
	rec, err := s.audit.Begin(ctx, Inbound{
		Provider:       string(result.Provider),
		Body:           result.Payload,
		SignatureValid: true,
		Origin:         model.OriginLookup,
	})
	if err != nil {
		return nil, err
	}

	if err := s.processor.Process(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("failed to process looked up purchase: %w", err)
	}
	return s.audit.Get(ctx, rec.ID)
}

func lookupResult(err error) string {
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	if errors.Is(err, domainErrors.ErrCredentialsMissing) {
		return "credentials_missing"
	}
	return "error"
}
