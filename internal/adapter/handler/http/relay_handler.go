package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/middleware/auth"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/usecase"
	"go.uber.org/zap"
)

// RelayDeliveries is the relay's use case surface.
type RelayDeliveries interface {
	Accept(ctx context.Context, providerName string, body []byte, headers http.Header) (*model.RelayDelivery, error)
	Redeliver(ctx context.Context, id uuid.UUID) (*model.RelayDelivery, error)
	Get(ctx context.Context, id uuid.UUID) (*model.RelayDelivery, error)
	List(ctx context.Context, status model.RelayDeliveryStatus, limit int) ([]*model.RelayDelivery, error)
}

// RelayHandler serves the relay process. Its webhook route mirrors the
// main service so providers can point at either.
type RelayHandler struct {
	relay        RelayDeliveries
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewRelayHandler(relay RelayDeliveries, maxBodyBytes int64, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		relay:        relay,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleWebhook stores the call and queues it for forwarding. It answers
// 200 in every case.
func (h *RelayHandler) HandleWebhook(c echo.Context) error {
	provider := c.Param("provider")

	body, truncated, err := readBody(c.Request().Body, h.maxBodyBytes)
	if err != nil || truncated {
		h.logger.Warn("Relay body unreadable or over limit",
			zap.String("provider", provider),
			zap.Bool("truncated", truncated),
			zap.Error(err))
	}

	ctx := context.WithoutCancel(c.Request().Context())
	delivery, err := h.relay.Accept(ctx, provider, body, c.Request().Header)
	switch {
	case errors.Is(err, domainErrors.ErrStorageUnavailable):
		return c.JSON(http.StatusOK, WebhookResponse{
			Status:  usecase.ReceiptReceived,
			Message: "forwarded without relay record",
		})
	case err != nil:
		h.logger.Error("Relay accept failed", zap.String("provider", provider), zap.Error(err))
		return c.JSON(http.StatusOK, WebhookResponse{
			Status:  usecase.ReceiptError,
			Message: "webhook could not be recorded",
		})
	}

	return c.JSON(http.StatusOK, WebhookResponse{
		Status:  usecase.ReceiptReceived,
		Message: "queued " + delivery.ID.String(),
	})
}

// ListDeliveries handles GET /admin/deliveries?status=&limit=
func (h *RelayHandler) ListDeliveries(c echo.Context) error {
	status := model.RelayDeliveryStatus(c.QueryParam("status"))
	if status == "" {
		status = model.RelayForwardFailed
	}
	switch status {
	case model.RelayQueued, model.RelayForwarded, model.RelayForwardFailed:
	default:
		return badRequest("unknown status " + string(status))
	}

	limit, err := parseLimit(c.QueryParam("limit"), 50, 500)
	if err != nil {
		return badRequest("limit must be a positive integer")
	}

	deliveries, err := h.relay.List(c.Request().Context(), status, limit)
	if err != nil {
		return fail(h.logger, err, "Failed to list deliveries")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// GetDelivery handles GET /admin/deliveries/:id
func (h *RelayHandler) GetDelivery(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid delivery id")
	}

	delivery, err := h.relay.Get(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, err, "Failed to get delivery", zap.String("delivery_id", id.String()))
	}
	if delivery == nil {
		return fail(h.logger, domainErrors.ErrDeliveryNotFound, "Delivery not found", zap.String("delivery_id", id.String()))
	}
	return c.JSON(http.StatusOK, delivery)
}

// Redeliver handles POST /admin/deliveries/:id/redeliver
func (h *RelayHandler) Redeliver(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid delivery id")
	}

	delivery, err := h.relay.Redeliver(c.Request().Context(), id)
	if err != nil {
		return fail(h.logger, err, "Failed to redeliver", zap.String("delivery_id", id.String()))
	}

	h.logger.Info("Redelivery requested",
		zap.String("actor", auth.Actor(c)),
		zap.String("delivery_id", id.String()))
	return c.JSON(http.StatusAccepted, delivery)
}
