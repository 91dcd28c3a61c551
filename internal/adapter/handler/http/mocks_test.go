package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/entity"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/credentials"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/usecase"
)

// MockWebhookReceiver is a mock implementation of WebhookReceiver
type MockWebhookReceiver struct {
	mock.Mock
}

func (m *MockWebhookReceiver) Receive(ctx context.Context, req usecase.WebhookRequest) (*usecase.Receipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Receipt), args.Error(1)
}

// MockDiagnosticsSearcher is a mock implementation of DiagnosticsSearcher
type MockDiagnosticsSearcher struct {
	mock.Mock
}

func (m *MockDiagnosticsSearcher) Search(ctx context.Context, term string, limit int) (*entity.DiagnosticReport, error) {
	args := m.Called(ctx, term, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.DiagnosticReport), args.Error(1)
}

// MockWebhookLogs implements WebhookLogReader and WebhookReplayer
type MockWebhookLogs struct {
	mock.Mock
}

func (m *MockWebhookLogs) Get(ctx context.Context, id uuid.UUID) (*model.WebhookLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookLog), args.Error(1)
}

func (m *MockWebhookLogs) List(ctx context.Context, filter repository.LogFilter) ([]*model.WebhookLog, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WebhookLog), args.Error(1)
}

func (m *MockWebhookLogs) Replay(ctx context.Context, logID uuid.UUID) (*model.WebhookLog, error) {
	args := m.Called(ctx, logID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookLog), args.Error(1)
}

// MockPurchaseLookup is a mock implementation of PurchaseLookup
type MockPurchaseLookup struct {
	mock.Mock
}

func (m *MockPurchaseLookup) Lookup(ctx context.Context, providerName, transactionID string) (*provider.PurchaseLookup, error) {
	args := m.Called(ctx, providerName, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PurchaseLookup), args.Error(1)
}

func (m *MockPurchaseLookup) Reconcile(ctx context.Context, providerName, transactionID string) (*model.WebhookLog, error) {
	args := m.Called(ctx, providerName, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookLog), args.Error(1)
}

// MockCredentialRefresher is a mock implementation of CredentialRefresher
type MockCredentialRefresher struct {
	mock.Mock
}

func (m *MockCredentialRefresher) Refresh(ctx context.Context) (*credentials.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentials.Snapshot), args.Error(1)
}

// MockRelayDeliveries is a mock implementation of RelayDeliveries
type MockRelayDeliveries struct {
	mock.Mock
}

func (m *MockRelayDeliveries) Accept(ctx context.Context, providerName string, body []byte, headers http.Header) (*model.RelayDelivery, error) {
	args := m.Called(ctx, providerName, body, headers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RelayDelivery), args.Error(1)
}

func (m *MockRelayDeliveries) Redeliver(ctx context.Context, id uuid.UUID) (*model.RelayDelivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RelayDelivery), args.Error(1)
}

func (m *MockRelayDeliveries) Get(ctx context.Context, id uuid.UUID) (*model.RelayDelivery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RelayDelivery), args.Error(1)
}

func (m *MockRelayDeliveries) List(ctx context.Context, status model.RelayDeliveryStatus, limit int) ([]*model.RelayDelivery, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RelayDelivery), args.Error(1)
}
