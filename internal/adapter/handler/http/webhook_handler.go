package http

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/usecase"
	"go.uber.org/zap"
)

// WebhookReceiver records an inbound webhook.
type WebhookReceiver interface {
	Receive(ctx context.Context, req usecase.WebhookRequest) (*usecase.Receipt, error)
}

// WebhookResponse is the body every webhook caller gets.
type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type WebhookHandler struct {
	ingest       WebhookReceiver
	maxBodyBytes int64
	logger       *zap.Logger
}

func NewWebhookHandler(ingest WebhookReceiver, maxBodyBytes int64, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingest:       ingest,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// HandleWebhook answers 200 in every case. Whether the call was recorded
// is in the status field; what happened to it is only in the webhook log.
func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	provider := c.Param("provider")

	body, truncated, err := readBody(c.Request().Body, h.maxBodyBytes)
	if err != nil {
		h.logger.Warn("Error reading webhook body",
			zap.String("provider", provider),
			zap.Error(err))
	}
	if truncated {
		// Recorded anyway so the call is audited; the cut payload fails to parse.
		h.logger.Warn("Webhook body over limit, truncated",
			zap.String("provider", provider),
			zap.Int64("limit", h.maxBodyBytes))
	}

	// The request context ends with the response; the write must not.
	ctx := context.WithoutCancel(c.Request().Context())
	receipt, err := h.ingest.Receive(ctx, usecase.WebhookRequest{
		Provider: provider,
		Body:     body,
		Headers:  c.Request().Header,
	})
	if err != nil {
		h.logger.Error("Failed to record webhook",
			zap.String("provider", provider),
			zap.Error(err))
		return c.JSON(http.StatusOK, WebhookResponse{
			Status:  usecase.ReceiptError,
			Message: "webhook could not be recorded",
		})
	}

	return c.JSON(http.StatusOK, WebhookResponse{
		Status:  receipt.Status,
		Message: receipt.Message,
	})
}

func readBody(r io.Reader, limit int64) ([]byte, bool, error) {
	if limit <= 0 {
		body, err := io.ReadAll(r)
		return body, false, err
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if int64(len(body)) > limit {
		return body[:limit], true, err
	}
	return body, false, err
}
