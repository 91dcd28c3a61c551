package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	domainErrors "github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/errors"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/provider"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/credentials"
	eduzzProvider "github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/provider/eduzz"
	hotmartProvider "github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/provider/hotmart"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/provider/oauthclient"
	stripeProvider "github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/normalizer"
	"go.uber.org/zap"
)

// Adapters returns the payload adapters of every supported provider, each
// provider's catch-all last.
func Adapters() []normalizer.PayloadAdapter {
	var all []normalizer.PayloadAdapter
	all = append(all, hotmartProvider.Adapters()...)
	all = append(all, eduzzProvider.Adapters()...)
	all = append(all, stripeProvider.Adapters()...)
	return all
}

// NewNormalizer creates a normalizer with every provider adapter registered
func NewNormalizer(aliases map[string]string, logger *zap.Logger) *normalizer.Normalizer {
	n := normalizer.New(logger, normalizer.WithPlanAliases(aliases))
	n.Register(Adapters()...)
	return n
}

type cachedClient struct {
	version uint64
	client  provider.LookupClient
}

// Factory creates provider lookup clients from the current credential
// snapshot. A client is rebuilt after the snapshot changes.
type Factory struct {
	providers map[string]config.ProviderConfig
	store     *credentials.Store
	logger    *zap.Logger

	mu      sync.Mutex
	clients map[string]cachedClient
}

// NewFactory creates a new provider factory
func NewFactory(providers map[string]config.ProviderConfig, store *credentials.Store, logger *zap.Logger) *Factory {
	return &Factory{
		providers: providers,
		store:     store,
		logger:    logger,
		clients:   make(map[string]cachedClient),
	}
}

// Enabled reports whether name is configured and enabled.
func (f *Factory) Enabled(name string) bool {
	pc, ok := f.providers[strings.ToLower(name)]
	return ok && pc.Enabled
}

// GetLookupClient returns the lookup client for name
func (f *Factory) GetLookupClient(name string) (provider.LookupClient, error) {
	name = strings.ToLower(name)
	pc, ok := f.providers[name]
	if !ok || !pc.Enabled {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrUnknownProvider, name)
	}

	switch provider.Name(name) {
	case provider.Hotmart, provider.Eduzz:
	default:
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrLookupUnsupported, name)
	}

	snap := f.store.Current()
	creds, ok := snap.Get(name)
	if !ok || !creds.HasClient() {
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrCredentialsMissing, name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.clients[name]; ok && cached.version == snap.Version {
		return cached.client, nil
	}

	client, err := f.createClient(provider.Name(name), pc, creds)
	if err != nil {
		return nil, err
	}
	f.clients[name] = cachedClient{version: snap.Version, client: client}

	f.logger.Info("Provider lookup client created",
		zap.String("provider", name),
		zap.Uint64("credentials_version", snap.Version))
	return client, nil
}

func (f *Factory) createClient(name provider.Name, pc config.ProviderConfig, creds credentials.ProviderCredentials) (provider.LookupClient, error) {
	cfg := oauthclient.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		BaseURL:      creds.APIBaseURL,
		Timeout:      pc.Timeout,
	}

	switch name {
	case provider.Hotmart:
		return hotmartProvider.NewClient(cfg, f.logger)
	case provider.Eduzz:
		return eduzzProvider.NewClient(cfg, f.logger)
	default:
		return nil, fmt.Errorf("%w: %s", domainErrors.ErrLookupUnsupported, name)
	}
}
