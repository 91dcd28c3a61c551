package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"go.uber.org/zap"
)

const maxForwardResponseBytes = 64 << 10

// errMainNotRecorded means the main application answered but could not
// store the webhook.
var errMainNotRecorded = errors.New("main application did not record the webhook")

// HealthChecker checks the main application before a forward.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Forwarder sends a relay delivery to the main ingress.
type Forwarder interface {
	Forward(ctx context.Context, delivery *model.RelayDelivery) (*ForwardResponse, error)
}

// ForwardResponse is the main application's answer.
type ForwardResponse struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Attempts   int    `json:"-"`
}

// HTTPForwarder posts deliveries to the main ingress, retrying transport
// failures, 5xx answers and unrecorded webhooks with exponential backoff.
type HTTPForwarder struct {
	client *http.Client
	cfg    config.ForwardConfig
	health HealthChecker
	logger *zap.Logger
}

// NewHTTPForwarder creates a forwarder. health may be nil.
func NewHTTPForwarder(cfg config.ForwardConfig, health HealthChecker, logger *zap.Logger) *HTTPForwarder {
	return &HTTPForwarder{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		health: health,
		logger: logger,
	}
}

func (f *HTTPForwarder) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.InitialInterval
	b.MaxInterval = f.cfg.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, f.cfg.MaxRetries), ctx)
}

// Forward sends delivery and returns the main application's answer. A 4xx
// answer is not retried.
func (f *HTTPForwarder) Forward(ctx context.Context, delivery *model.RelayDelivery) (*ForwardResponse, error) {
	attempts := 0
	op := func() (*ForwardResponse, error) {
		attempts++
		if f.health != nil {
			if err := f.health.Check(ctx); err != nil {
				return nil, fmt.Errorf("main application not serving: %w", err)
			}
		}
		return f.send(ctx, delivery)
	}

	resp, err := backoff.RetryNotifyWithData(op, f.policy(ctx), func(err error, wait time.Duration) {
		f.logger.Warn("Forward attempt failed, retrying",
			zap.String("delivery_id", delivery.ID.String()),
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if resp != nil {
		resp.Attempts = attempts
	}
	return resp, err
}

func (f *HTTPForwarder) send(ctx context.Context, delivery *model.RelayDelivery) (*ForwardResponse, error) {
	endpoint := strings.TrimRight(f.cfg.TargetURL, "/") + "/webhook/" + url.PathEscape(delivery.Provider)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(delivery.ForwardBody()))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build forward request: %w", err))
	}
	for name, values := range headerValues(delivery.Headers) {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RelayDeliveryHeader, delivery.ID.String())

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach main application: %w", err)
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxForwardResponseBytes))
	resp := &ForwardResponse{StatusCode: httpResp.StatusCode}
	_ = json.Unmarshal(body, resp)

	switch {
	case httpResp.StatusCode >= 500:
		return resp, fmt.Errorf("main application answered %d", httpResp.StatusCode)
	case httpResp.StatusCode >= 400:
		return resp, backoff.Permanent(fmt.Errorf("main application rejected the webhook with %d", httpResp.StatusCode))
	case resp.Status == ReceiptError:
		return resp, fmt.Errorf("%w: %s", errMainNotRecorded, resp.Message)
	}
	return resp, nil
}

// skippedHeaders are not stored with a delivery.
var skippedHeaders = map[string]bool{
	"Host":              true,
	"Content-Length":    true,
	"Connection":        true,
	"Accept-Encoding":   true,
	"Transfer-Encoding": true,
	"Authorization":     true,
}

// CaptureHeaders keeps the headers a forward needs, in a form that survives
// a round trip through a jsonb column.
func CaptureHeaders(h http.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for name, values := range h {
		canonical := http.CanonicalHeaderKey(name)
		if skippedHeaders[canonical] || canonical == RelayDeliveryHeader {
			continue
		}
		vs := make([]interface{}, len(values))
		for i, v := range values {
			vs[i] = v
		}
		out[canonical] = vs
	}
	return out
}

func headerValues(stored map[string]interface{}) map[string][]string {
	out := make(map[string][]string, len(stored))
	for name, raw := range stored {
		switch v := raw.(type) {
		case string:
			out[name] = []string{v}
		case []string:
			out[name] = v
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					out[name] = append(out[name], s)
				}
			}
		}
	}
	return out
}
