package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/credentials"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/crypto"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// RelayDeliveryHeader carries the relay's delivery id on forwarded calls.
const RelayDeliveryHeader = "X-Relay-Delivery-Id"

// Receipt statuses returned to webhook callers.
const (
	ReceiptReceived = "received"
	ReceiptSkipped  = "skipped"
	ReceiptError    = "error"
)

// SecretSource resolves provider secrets; *credentials.Store is the
// production implementation.
type SecretSource interface {
	Get(provider string) (credentials.ProviderCredentials, bool)
}

// RecordDispatcher schedules a stored record for processing.
type RecordDispatcher interface {
	Dispatch(logID uuid.UUID) bool
}

// WebhookRequest is one inbound webhook call.
type WebhookRequest struct {
	Provider string
	Body     []byte
	Headers  http.Header
}

// Receipt is what the caller is told. It never reflects the processing
// outcome, only whether the call was recorded.
type Receipt struct {
	LogID          uuid.UUID `json:"log_id"`
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	SignatureValid bool      `json:"signature_valid"`
}

// IngestService records inbound webhooks and hands them to the dispatcher.
type IngestService struct {
	audit      *AuditLogger
	providers  map[string]config.ProviderConfig
	secrets    SecretSource
	dispatcher RecordDispatcher
	logger     *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	audit *AuditLogger,
	providers map[string]config.ProviderConfig,
	secrets SecretSource,
	dispatcher RecordDispatcher,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		audit:      audit,
		providers:  providers,
		secrets:    secrets,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Receive writes the received record and dispatches it. Every call leaves a
// record, including calls for unknown providers and calls with a bad
// signature. The only error is failing to write that record.
func (s *IngestService) Receive(ctx context.Context, req WebhookRequest) (*Receipt, error) {
	name := strings.ToLower(strings.TrimSpace(req.Provider))
	in := Inbound{
		Provider: name,
		Body:     req.Body,
		Origin:   model.OriginDirect,
	}
	if id, ok := relayDeliveryID(req.Headers); ok {
		in.Origin = model.OriginRelay
		in.RelayDeliveryID = &id
	}

	pc, known := s.providers[name]
	if !known || !pc.Enabled {
		rec, err := s.audit.Begin(ctx, in)
		if err != nil {
			return nil, err
		}
		s.logger.Warn("Webhook for unknown provider", zap.String("provider", name))
		return s.finishEarly(ctx, rec, "unknown provider "+rec.Source)
	}

	in.SignatureValid = s.verify(name, pc, req, in.Origin == model.OriginRelay)
	rec, err := s.audit.Begin(ctx, in)
	if err != nil {
		return nil, err
	}

	if !in.SignatureValid {
		metrics.SignatureInvalid.WithLabelValues(name).Inc()
		s.logger.Warn("Webhook signature invalid",
			zap.String("log_id", rec.ID.String()),
			zap.String("provider", name),
			zap.Bool("rejected", pc.RejectInvalidSignature))
		if pc.RejectInvalidSignature {
			return s.finishEarly(ctx, rec, "signature invalid")
		}
	}

	s.dispatcher.Dispatch(rec.ID)
	return &Receipt{
		LogID:          rec.ID,
		Status:         ReceiptReceived,
		Message:        "Webhook received",
		SignatureValid: rec.SignatureValid,
	}, nil
}

// Replay stores a new record carrying the raw payload of an earlier one and
// dispatches it. The original record is not touched.
func (s *IngestService) Replay(ctx context.Context, logID uuid.UUID) (*model.WebhookLog, error) {
	original, err := s.audit.Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrLogNotFound, logID)
	}

	rec, err := s.audit.Begin(ctx, Inbound{
		Provider:       original.Source,
		Body:           []byte(original.RawPayload),
		SignatureValid: original.SignatureValid,
		Origin:         model.OriginReplay,
		ReplayOf:       &original.ID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Webhook replay scheduled",
		zap.String("log_id", rec.ID.String()),
		zap.String("replay_of", original.ID.String()))
	s.dispatcher.Dispatch(rec.ID)
	return rec, nil
}

// verify checks the provider signature. Relayed calls may arrive long after
// the provider signed them, so timestamped schemes get the wider window.
func (s *IngestService) verify(name string, pc config.ProviderConfig, req WebhookRequest, relayed bool) bool {
	creds, ok := s.secrets.Get(name)
	if !ok || creds.WebhookSecret == "" {
		s.logger.Warn("No webhook secret configured", zap.String("provider", name))
		return false
	}
	header := req.Headers.Get(pc.SignatureHeader)
	if header == "" {
		return false
	}
	if relayed {
		return crypto.VerifySignatureWithin(pc.SignatureScheme, req.Body, header, creds.WebhookSecret, crypto.RelayedStripeTolerance)
	}
	return crypto.VerifySignature(pc.SignatureScheme, req.Body, header, creds.WebhookSecret)
}

func (s *IngestService) finishEarly(ctx context.Context, rec *model.WebhookLog, reason string) (*Receipt, error) {
	receipt := &Receipt{
		LogID:          rec.ID,
		Status:         ReceiptSkipped,
		Message:        reason,
		SignatureValid: rec.SignatureValid,
	}
	// The received record exists, so the call is audited even if this
	// update fails; the sweeper then runs it through the normal pipeline.
	if err := s.audit.Finish(ctx, rec.ID, model.WebhookLogSkipped, repository.LogUpdate{ErrorMessage: &reason}); err != nil {
		s.logger.Error("Failed to skip webhook", zap.String("log_id", rec.ID.String()), zap.Error(err))
	}
	return receipt, nil
}

func relayDeliveryID(h http.Header) (uuid.UUID, bool) {
	v := h.Get(RelayDeliveryHeader)
	if v == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
