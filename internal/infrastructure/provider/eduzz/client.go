package eduzz

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/tidwall/gjson"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/provider/oauthclient"
	"go.uber.org/zap"
)

const (
	DefaultTokenURL   = "https://accounts-api.eduzz.com/oauth/token"
	DefaultAPIBaseURL = "https://api.eduzz.com"

	salesPath = "/myeduzz/v1/sales/"
)

// Client looks up sales through the eduzz API.
type Client struct {
	api    *oauthclient.Client
	logger *zap.Logger
}

func NewClient(cfg oauthclient.Config, logger *zap.Logger) (*Client, error) {
	cfg.Provider = provider.Eduzz
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}

	api, err := oauthclient.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Client{api: api, logger: logger}, nil
}

func (c *Client) Provider() provider.Name { return provider.Eduzz }

// LookupPurchase fetches one sale. The API already answers in the v2
// webhook shape, so the sale object doubles as the replay payload.
func (c *Client) LookupPurchase(ctx context.Context, transactionID string) (*provider.PurchaseLookup, error) {
	c.logger.Info("EduzzClient: Looking up sale", zap.String("transaction_id", transactionID))

	body, err := c.api.GetJSON(ctx, salesPath+url.PathEscape(transactionID), nil)
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

	sale := gjson.GetBytes(body, "data")
	if !sale.IsObject() {
		sale = gjson.ParseBytes(body)
	}
	if !sale.IsObject() {
		return nil, &provider.ProviderError{
			Code:    provider.CodeNotFound,
			Message: "eduzz purchase not found",
			Details: transactionID,
			Err:     domainErrors.ErrPurchaseNotFound,
		}
	}

	txn := sale.Get("transaction.id").String()
	if txn == "" {
		txn = transactionID
	}

	return &provider.PurchaseLookup{
		Provider:      provider.Eduzz,
		TransactionID: txn,
		Status:        sale.Get("status.code").String(),
		Raw:           json.RawMessage(sale.Raw),
		Payload:       json.RawMessage(sale.Raw),
	}, nil
}
