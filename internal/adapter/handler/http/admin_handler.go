package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/credentials"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/middleware/auth"
	"go.uber.org/zap"
)

// WebhookLogReader reads the audit trail.
type WebhookLogReader interface {
	Get(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error)
	List(ctx context.Context, filter repository.LogFilter) ([]*model.WebhookLog, error)
}

// WebhookReplayer re-runs a stored payload as a new record.
type WebhookReplayer interface {
	Replay(ctx context.Context, logID uuid.UUID) (*model.WebhookLog, error)
}

// PurchaseLookup queries a provider's API directly.
type PurchaseLookup interface {
	Lookup(ctx context.Context, providerName, transactionID string) (*provider.PurchaseLookup, error)
	Reconcile(ctx context.Context, providerName, transactionID string) (*model.WebhookLog, error)
}

// CredentialRefresher reloads provider credentials.
type CredentialRefresher interface {
	Refresh(ctx context.Context) (*credentials.Snapshot, error)
}

// AdminHandler serves the operator endpoints under /admin.
type AdminHandler struct {
	logs        WebhookLogReader
	replayer    WebhookReplayer
	lookups     PurchaseLookup
	credentials CredentialRefresher
	logger      *zap.Logger
}

func NewAdminHandler(
	logs WebhookLogReader,
	replayer WebhookReplayer,
	lookups PurchaseLookup,
	credentials CredentialRefresher,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		logs:        logs,
		replayer:    replayer,
		lookups:     lookups,
		credentials: credentials,
		logger:      logger,
	}
}

// ListWebhooks handles GET /admin/webhooks?status=&provider=&email=&since=&limit=&offset=
func (h *AdminHandler) ListWebhooks(c echo.Context) error {
	filter := repository.LogFilter{
		Status: model.WebhookLogStatus(c.QueryParam("status")),
		Source: strings.ToLower(c.QueryParam("provider")),
		Email:  strings.ToLower(strings.TrimSpace(c.QueryParam("email"))),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return badRequest("unknown status " + string(filter.Status))
	}

	limit, err := parseLimit(c.QueryParam("limit"), 50, 500)
	if err != nil {
		return badRequest("limit must be a positive integer")
	}
	filter.Limit = limit

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := parseLimit(raw, 0, 1<<30)
		if err != nil {
			return badRequest("offset must be a positive integer")
		}
		filter.Offset = offset
	}

	if raw := c.QueryParam("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest("since must be an RFC 3339 timestamp")
		}
		filter.Since = &since
	}

	logs, err := h.logs.List(c.Request().Context(), filter)
	if err != nil {
		return fail(h.logger, err, "Failed to list webhook logs")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"logs":  logs,
		"count": len(logs),
	})
}

// GetWebhook handles GET /admin/webhooks/:id
func (h *AdminHandler) GetWebhook(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid webhook log id")
	}

	rec, err := h.logs.Get(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, err, "Failed to get webhook log", zap.String("log_id", id.String()))
	}
	if rec == nil {
		return fail(h.logger, domainErrors.ErrLogNotFound, "Webhook log not found", zap.String("log_id", id.String()))
	}
	return c.JSON(http.StatusOK, rec)
}

// ReplayWebhook handles POST /admin/webhooks/:id/replay. The replay runs in
// the background; the response carries the new record in received state.
func (h *AdminHandler) ReplayWebhook(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid webhook log id")
	}

	rec, err := h.replayer.Replay(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, err, "Failed to replay webhook", zap.String("log_id", id.String()))
	}

	h.logger.Info("Webhook replay requested",
		zap.String("actor", auth.Actor(c)),
		zap.String("replay_of", id.String()),
		zap.String("log_id", rec.ID.String()))
	return c.JSON(http.StatusAccepted, rec)
}

// LookupPurchase handles GET /admin/providers/:provider/purchases/:transaction
func (h *AdminHandler) LookupPurchase(c echo.Context) error {
	name, txn := strings.ToLower(c.Param("provider")), c.Param("transaction")

	result, err := h.lookups.Lookup(c.Request().Context(), name, txn)
	if err != nil {
		return fail(h.logger, err, "Purchase lookup failed",
			zap.String("provider", name),
			zap.String("transaction_id", txn))
	}
	return c.JSON(http.StatusOK, result)
}

// ReconcilePurchase handles POST /admin/providers/:provider/purchases/:transaction/reconcile.
// It waits for the pipeline and returns the final record.
func (h *AdminHandler) ReconcilePurchase(c echo.Context) error {
	name, txn := strings.ToLower(c.Param("provider")), c.Param("transaction")

	rec, err := h.lookups.Reconcile(c.Request().Context(), name, txn)
	if err != nil {
		return fail(h.logger, err, "Purchase reconcile failed",
			zap.String("provider", name),
			zap.String("transaction_id", txn))
	}

	h.logger.Info("Purchase reconciled from provider",
		zap.String("actor", auth.Actor(c)),
		zap.String("provider", name),
		zap.String("transaction_id", txn),
		zap.String("status", string(rec.Status)))
	return c.JSON(http.StatusOK, rec)
}

// RefreshCredentials handles POST /admin/credentials/refresh
func (h *AdminHandler) RefreshCredentials(c echo.Context) error {
	snap, err := h.credentials.Refresh(c.Request().Context())
	if err != nil {
		return fail(h.logger, domainErrors.ErrCredentialsMissing, "Credential refresh failed", zap.Error(err))
	}

	h.logger.Info("Credentials refreshed",
		zap.String("actor", auth.Actor(c)),
		zap.Uint64("version", snap.Version))
	return c.JSON(http.StatusOK, echo.Map{
		"version":   snap.Version,
		"source":    snap.Source,
		"providers": snap.Providers(),
		"loaded_at": snap.LoadedAt,
	})
}
