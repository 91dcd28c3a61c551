package hotmart

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/provider/oauthclient"
	"go.uber.org/zap"
)

const (
	DefaultTokenURL   = "https://api-sec-vlc.hotmart.com/security/oauth/token"
	DefaultAPIBaseURL = "https://developers.hotmart.com"

	salesHistoryPath = "/payments/api/v1/sales/history"
)

// Client looks up sales through the hotmart REST API.
type Client struct {
	api    *oauthclient.Client
	logger *zap.Logger
}

func NewClient(cfg oauthclient.Config, logger *zap.Logger) (*Client, error) {
	cfg.Provider = provider.Hotmart
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if cfg.EndpointParams == nil {
		cfg.EndpointParams = url.Values{"grant_type": {"client_credentials"}}
	}

	api, err := oauthclient.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, logger: logger}, nil
}

func (c *Client) Provider() provider.Name { return provider.Hotmart }

// LookupPurchase fetches one sale by transaction code. The result's Payload
// is shaped like a v2 webhook so it can be replayed through the pipeline.
func (c *Client) LookupPurchase(ctx context.Context, transactionID string) (*provider.PurchaseLookup, error) {
	c.logger.Info("HotmartClient: Looking up sale", zap.String("transaction_id", transactionID))

	body, err := c.api.GetJSON(ctx, salesHistoryPath, url.Values{"transaction": {transactionID}})
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, &provider.ProviderError{
			Code:    provider.CodeParseError,
			Message: "Failed to parse response",
			Details: "response is not valid JSON",
			Err:     domainErrors.ErrDownstreamAuth,
		}
	}

	item := gjson.GetBytes(body, "items.0")
	if !item.Exists() {
		return nil, &provider.ProviderError{
			Code:    provider.CodeNotFound,
			Message: "hotmart purchase not found",
			Details: transactionID,
			Err:     domainErrors.ErrPurchaseNotFound,
		}
	}

	status := item.Get("purchase.status").String()
	payload, err := json.Marshal(map[string]any{
		"event":   webhookEvent(status),
		"version": "2.0.0",
		"data":    json.RawMessage(item.Raw),
	})
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.CodeParseError,
			Message: "Failed to rebuild payload",
			Details: err.Error(),
			Err:     domainErrors.ErrDownstreamAuth,
		}
	}

	return &provider.PurchaseLookup{
		Provider:      provider.Hotmart,
		TransactionID: firstNonEmpty(item.Get("purchase.transaction").String(), transactionID),
		Status:        status,
		Raw:           json.RawMessage(item.Raw),
		Payload:       payload,
	}, nil
}

// webhookEvent converts a sales API status into the matching webhook event.
func webhookEvent(status string) string {
	switch strings.ToUpper(status) {
	case "APPROVED", "COMPLETE", "COMPLETED":
		return "PURCHASE_APPROVED"
	case "REFUNDED":
		return "PURCHASE_REFUNDED"
	case "CHARGEBACK":
		return "PURCHASE_CHARGEBACK"
	case "CANCELLED", "CANCELED":
		return "PURCHASE_CANCELED"
	default:
		return "PURCHASE_" + strings.ToUpper(status)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
