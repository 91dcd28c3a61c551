package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/credentials"
	"go.uber.org/zap"
)

func testProviders() map[string]config.ProviderConfig {
	return map[string]config.ProviderConfig{
		"hotmart": {
			Enabled:      true,
			ClientID:     "id",
			ClientSecret: "secret",
			TokenURL:     "http://127.0.0.1:1/token",
			APIBaseURL:   "http://127.0.0.1:1",
		},
		"eduzz":  {Enabled: true},
		"stripe": {Enabled: true, WebhookSecret: "whsec_test"},
		"legacy": {Enabled: false, ClientID: "id", ClientSecret: "secret"},
	}
}

func newTestFactory(t *testing.T) (*Factory, *credentials.Store) {
	t.Helper()
	providers := testProviders()
	store := credentials.NewStore(credentials.NewConfigSource(providers), zap.NewNop())
	require.NoError(t, store.Load(context.Background()))
	return NewFactory(providers, store, zap.NewNop()), store
}

func TestNewNormalizer_RegistersAllProviders(t *testing.T) {
	n := NewNormalizer(map[string]string{"Plano Anual": "premium_365"}, zap.NewNop())

	assert.Equal(t, []string{"eduzz", "hotmart", "stripe"}, n.Providers())

	res := n.Normalize("hotmart", []byte(`{"event":"PURCHASE_APPROVED","data":{"buyer":{"email":"a@b.com"},"purchase":{"transaction":"HP1"},"subscription":{"plan":{"name":"Plano Anual"}}}}`))
	require.True(t, res.Valid(), res.Error())
	assert.Equal(t, "premium_365", res.Event.PlanIdentifier)
}

func TestFactory_GetLookupClient(t *testing.T) {
	f, _ := newTestFactory(t)

	client, err := f.GetLookupClient("Hotmart")
	require.NoError(t, err)
	assert.Equal(t, provider.Hotmart, client.Provider())

	again, err := f.GetLookupClient("hotmart")
	require.NoError(t, err)
	assert.Same(t, client, again, "client is reused while the snapshot is unchanged")
}

func TestFactory_RebuildsAfterRefresh(t *testing.T) {
	f, store := newTestFactory(t)

	first, err := f.GetLookupClient("hotmart")
	require.NoError(t, err)

	_, err = store.Refresh(context.Background())
	require.NoError(t, err)

	second, err := f.GetLookupClient("hotmart")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestFactory_Errors(t *testing.T) {
	f, _ := newTestFactory(t)

	tests := []struct {
		name     string
		provider string
		want     error
	}{
		{name: "unknown", provider: "paypal", want: domainErrors.ErrUnknownProvider},
		{name: "disabled", provider: "legacy", want: domainErrors.ErrUnknownProvider},
		{name: "stripe has no lookup", provider: "stripe", want: domainErrors.ErrLookupUnsupported},
		{name: "no client credentials", provider: "eduzz", want: domainErrors.ErrCredentialsMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := f.GetLookupClient(tt.provider)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFactory_Enabled(t *testing.T) {
	f, _ := newTestFactory(t)

	assert.True(t, f.Enabled("STRIPE"))
	assert.False(t, f.Enabled("legacy"))
	assert.False(t, f.Enabled("paypal"))
}
