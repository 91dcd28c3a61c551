package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/credentials"
	"go.uber.org/zap"
)

type adminFixture struct {
	logs    *MockWebhookLogs
	lookups *MockPurchaseLookup
	creds   *MockCredentialRefresher
	search  *MockDiagnosticsSearcher
	echo    *echo.Echo
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		logs:    new(MockWebhookLogs),
		lookups: new(MockPurchaseLookup),
		creds:   new(MockCredentialRefresher),
		search:  new(MockDiagnosticsSearcher),
		echo:    echo.New(),
	}
	admin := NewAdminHandler(f.logs, f.logs, f.lookups, f.creds, zap.NewNop())
	diagnostics := NewDiagnosticsHandler(f.search, zap.NewNop())

	f.echo.GET("/diagnostics/search", diagnostics.Search)
	f.echo.GET("/admin/webhooks", admin.ListWebhooks)
	f.echo.GET("/admin/webhooks/:id", admin.GetWebhook)
	f.echo.POST("/admin/webhooks/:id/replay", admin.ReplayWebhook)
	f.echo.GET("/admin/providers/:provider/purchases/:transaction", admin.LookupPurchase)
	f.echo.POST("/admin/providers/:provider/purchases/:transaction/reconcile", admin.ReconcilePurchase)
	f.echo.POST("/admin/credentials/refresh", admin.RefreshCredentials)
	return f
}

func (f *adminFixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestDiagnosticsHandler_Search(t *testing.T) {
	f := newAdminFixture()
	report := &entity.DiagnosticReport{
		Term: "ana@x.com",
		Matches: []entity.DiagnosticMatch{{
			Log:          &model.WebhookLog{ID: uuid.New(), Source: "hotmart"},
			MatchType:    entity.MatchDirectField,
			MatchedPaths: []string{"data.buyer.email"},
		}},
	}
	f.search.On("Search", mock.Anything, "ana@x.com", defaultSearchLimit).Return(report, nil)

	rec := f.do(http.MethodGet, "/diagnostics/search?email=ana@x.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	matches := body["matches"].([]interface{})
	require.Len(t, matches, 1)
	assert.Equal(t, "direct_field", matches[0].(map[string]interface{})["match_type"])
}

func TestDiagnosticsHandler_SearchErrors(t *testing.T) {
	f := newAdminFixture()
	f.search.On("Search", mock.Anything, "", defaultSearchLimit).Return(nil, domainErrors.ErrEmptySearchTerm)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/diagnostics/search").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/diagnostics/search?email=a@x.com&limit=-1").Code)
}

func TestDiagnosticsHandler_LimitIsCapped(t *testing.T) {
	f := newAdminFixture()
	f.search.On("Search", mock.Anything, "a@x.com", maxSearchLimit).Return(&entity.DiagnosticReport{Term: "a@x.com"}, nil)

	rec := f.do(http.MethodGet, "/diagnostics/search?email=a@x.com&limit=100000")
	assert.Equal(t, http.StatusOK, rec.Code)
	f.search.AssertExpectations(t)
}

func TestAdminHandler_ListWebhooks(t *testing.T) {
	f := newAdminFixture()
	since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.logs.On("List", mock.Anything, mock.MatchedBy(func(filter repository.LogFilter) bool {
		return filter.Status == model.WebhookLogError &&
			filter.Source == "hotmart" &&
			filter.Limit == 20 &&
			filter.Since != nil && filter.Since.Equal(since)
	})).Return([]*model.WebhookLog{{ID: uuid.New(), Status: model.WebhookLogError}}, nil)

	rec := f.do(http.MethodGet, "/admin/webhooks?status=error&provider=HotMart&limit=20&since=2026-01-02T03:04:05Z")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	f.logs.AssertExpectations(t)
}

func TestAdminHandler_ListWebhooksBadInput(t *testing.T) {
	f := newAdminFixture()

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/admin/webhooks?status=done").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/admin/webhooks?since=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/admin/webhooks?limit=abc").Code)
	f.logs.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestAdminHandler_GetWebhook(t *testing.T) {
	f := newAdminFixture()
	found := uuid.New()
	missing := uuid.New()
	f.logs.On("Get", mock.Anything, found).Return(&model.WebhookLog{ID: found, Status: model.WebhookLogSuccess}, nil)
	f.logs.On("Get", mock.Anything, missing).Return(nil, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/admin/webhooks/"+found.String()).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/admin/webhooks/"+missing.String()).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/admin/webhooks/not-a-uuid").Code)
}

func TestAdminHandler_ReplayWebhook(t *testing.T) {
	f := newAdminFixture()
	original := uuid.New()
	replay := &model.WebhookLog{ID: uuid.New(), Status: model.WebhookLogReceived, Origin: model.OriginReplay, ReplayOf: &original}
	f.logs.On("Replay", mock.Anything, original).Return(replay, nil)
	unknown := uuid.New()
	f.logs.On("Replay", mock.Anything, unknown).Return(nil, domainErrors.ErrLogNotFound)

	rec := f.do(http.MethodPost, "/admin/webhooks/"+original.String()+"/replay")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), replay.ID.String())

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/admin/webhooks/"+unknown.String()+"/replay").Code)
}

func TestAdminHandler_LookupPurchase(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "found", wantStatus: http.StatusOK},
		{name: "unknown provider", err: domainErrors.ErrUnknownProvider, wantStatus: http.StatusNotFound},
		{name: "no lookup api", err: domainErrors.ErrLookupUnsupported, wantStatus: http.StatusNotImplemented},
		{name: "no credentials", err: domainErrors.ErrCredentialsMissing, wantStatus: http.StatusServiceUnavailable},
		{name: "not found", err: &provider.ProviderError{Code: provider.CodeNotFound, Message: "no sale", Err: domainErrors.ErrPurchaseNotFound}, wantStatus: http.StatusNotFound},
		{name: "auth failed", err: &provider.ProviderError{Code: provider.CodeAuthFailed, Message: "bad client", Err: domainErrors.ErrDownstreamAuth}, wantStatus: http.StatusBadGateway},
		{name: "timeout", err: &provider.ProviderError{Code: provider.CodeTimeout, Message: "timed out", Err: domainErrors.ErrDownstreamAuth}, wantStatus: http.StatusGatewayTimeout},
		{name: "context deadline", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()
			if tt.err != nil {
				f.lookups.On("Lookup", mock.Anything, "hotmart", "HP1").Return(nil, tt.err)
			} else {
				f.lookups.On("Lookup", mock.Anything, "hotmart", "HP1").Return(&provider.PurchaseLookup{
					Provider:      provider.Hotmart,
					TransactionID: "HP1",
					Status:        "APPROVED",
				}, nil)
			}

			rec := f.do(http.MethodGet, "/admin/providers/Hotmart/purchases/HP1")
			assert.Equal(t, tt.wantStatus, rec.Code)
			f.lookups.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_ReconcilePurchase(t *testing.T) {
	f := newAdminFixture()
	f.lookups.On("Reconcile", mock.Anything, "eduzz", "E9").Return(&model.WebhookLog{
		ID:     uuid.New(),
		Status: model.WebhookLogSuccess,
		Origin: model.OriginLookup,
	}, nil)

	rec := f.do(http.MethodPost, "/admin/providers/eduzz/purchases/E9/reconcile")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
}

func TestAdminHandler_RefreshCredentials(t *testing.T) {
	f := newAdminFixture()
	f.creds.On("Refresh", mock.Anything).Return(&credentials.Snapshot{Version: 3, Source: "file"}, nil).Once()
	f.creds.On("Refresh", mock.Anything).Return(nil, errors.New("file not found")).Once()

	rec := f.do(http.MethodPost, "/admin/credentials/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":3`)

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodPost, "/admin/credentials/refresh").Code)
}
