// Package oauthclient is the authenticated HTTP transport shared by the
// provider lookup clients.
package oauthclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTimeout bounds every outbound call, token requests included.
const DefaultTimeout = 15 * time.Second

const maxResponseBytes = 4 << 20

type Config struct {
	Provider     provider.Name
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	Scopes       []string
	// EndpointParams are extra form values sent with the token request.
	EndpointParams url.Values
	Timeout        time.Duration
}

// Client performs GET requests with a client-credentials bearer token.
// Tokens are cached and refreshed by the underlying oauth2 transport.
type Client struct {
	provider provider.Name
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %s client id/secret", domainErrors.ErrCredentialsMissing, cfg.Provider)
	}
	if cfg.TokenURL == "" || cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s token or api url", domainErrors.ErrCredentialsMissing, cfg.Provider)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cc := &clientcredentials.Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		TokenURL:       cfg.TokenURL,
		Scopes:         cfg.Scopes,
		EndpointParams: cfg.EndpointParams,
		AuthStyle:      oauth2.AuthStyleInHeader,
	}

	// The base client bounds token requests; the returned client bounds the
	// API request, token fetch included.
	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := cc.Client(ctx)
	httpClient.Timeout = timeout

	return &Client{
		provider: cfg.Provider,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     httpClient,
		logger:   logger,
	}, nil
}

// GetJSON fetches path relative to the base URL and returns the body of a
// 2xx response. Every failure is a *provider.ProviderError.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.CodeRequestError,
			Message: "Failed to create request",
			Details: err.Error(),
			Err:     domainErrors.ErrDownstreamAuth,
		}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Provider request failed",
			zap.String("provider", string(c.provider)),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, transportError(c.provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.CodeResponseError,
			Message: "Failed to read response",
			Details: err.Error(),
			Err:     domainErrors.ErrDownstreamAuth,
		}
	}

	c.logger.Debug("Provider response received",
		zap.String("provider", string(c.provider)),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, &provider.ProviderError{
			Code:    provider.CodeNotFound,
			Message: fmt.Sprintf("%s purchase not found", c.provider),
			Err:     domainErrors.ErrPurchaseNotFound,
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &provider.ProviderError{
			Code:    provider.CodeAuthFailed,
			Message: fmt.Sprintf("%s rejected the access token", c.provider),
			Details: truncate(body),
			Err:     domainErrors.ErrDownstreamAuth,
		}
	default:
		return nil, &provider.ProviderError{
			Code:    provider.CodeAPIError,
			Message: fmt.Sprintf("%s API returned status %d", c.provider, resp.StatusCode),
			Details: truncate(body),
			Err:     domainErrors.ErrDownstreamAuth,
		}
	}
}

func transportError(name provider.Name, err error) *provider.ProviderError {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &provider.ProviderError{
			Code:    provider.CodeAuthFailed,
			Message: fmt.Sprintf("%s token request failed", name),
			Details: retrieveErr.Error(),
			Err:     domainErrors.ErrDownstreamAuth,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &provider.ProviderError{
			Code:    provider.CodeTimeout,
			Message: fmt.Sprintf("%s request timed out", name),
			Details: err.Error(),
			Err:     domainErrors.ErrDownstreamAuth,
		}
	}

	return &provider.ProviderError{
		Code:    provider.CodeAPIError,
		Message: fmt.Sprintf("%s API request failed", name),
		Details: err.Error(),
		Err:     domainErrors.ErrDownstreamAuth,
	}
}

func truncate(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
