package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/wekeepgrowing/semo-billing-webhooks/internal/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/repository"
	"github.com/wekeepgrowing/semo-billing-webhooks/internal/infrastructure/crypto"
	"gopkg.in/yaml.v3"
)

// Source loads the full credential set, keyed by lower-case provider name.
type Source interface {
	Name() string
	Load(ctx context.Context) (map[string]ProviderCredentials, error)
}

// ConfigSource serves the inline secrets of the provider config section.
type ConfigSource struct {
	providers map[string]config.ProviderConfig
}

func NewConfigSource(providers map[string]config.ProviderConfig) *ConfigSource {
	return &ConfigSource{providers: providers}
}

func (s *ConfigSource) Name() string { return "config" }

func (s *ConfigSource) Load(context.Context) (map[string]ProviderCredentials, error) {
	out := make(map[string]ProviderCredentials, len(s.providers))
	for name, pc := range s.providers {
		key := strings.ToLower(name)
		out[key] = ProviderCredentials{
			Provider:      key,
			WebhookSecret: pc.WebhookSecret,
			ClientID:      pc.ClientID,
			ClientSecret:  pc.ClientSecret,
			TokenURL:      pc.TokenURL,
			APIBaseURL:    pc.APIBaseURL,
		}
	}
	return out, nil
}

// FileSource reads a yaml document of the form
//
//	providers:
//	  hotmart:
//	    webhook_secret: ...
//	    client_id: ...
//	    client_secret: ...
//
// The file is re-read on every Load, so rotating secrets only needs the
// file replaced and a refresh.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type credentialFile struct {
	Providers map[string]fileEntry `yaml:"providers"`
}

type fileEntry struct {
	WebhookSecret string `yaml:"webhook_secret"`
	ClientID      string `yaml:"client_id"`
	ClientSecret  string `yaml:"client_secret"`
	TokenURL      string `yaml:"token_url"`
	APIBaseURL    string `yaml:"api_base_url"`
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Load(context.Context) (map[string]ProviderCredentials, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var doc credentialFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	out := make(map[string]ProviderCredentials, len(doc.Providers))
	for name, e := range doc.Providers {
		key := strings.ToLower(name)
		out[key] = ProviderCredentials{
			Provider:      key,
			WebhookSecret: e.WebhookSecret,
			ClientID:      e.ClientID,
			ClientSecret:  e.ClientSecret,
			TokenURL:      e.TokenURL,
			APIBaseURL:    e.APIBaseURL,
		}
	}
	return out, nil
}

// DatabaseSource reads the provider_credentials table. Secrets with an IV
// are decrypted with cipher.
type DatabaseSource struct {
	repo   repository.CredentialRepository
	cipher crypto.SecretCipher
}

func NewDatabaseSource(repo repository.CredentialRepository, cipher crypto.SecretCipher) *DatabaseSource {
	return &DatabaseSource{repo: repo, cipher: cipher}
}

func (s *DatabaseSource) Name() string { return "database" }

func (s *DatabaseSource) Load(ctx context.Context) (map[string]ProviderCredentials, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider credentials: %w", err)
	}

	out := make(map[string]ProviderCredentials, len(rows))
	for _, row := range rows {
		key := strings.ToLower(row.Provider)

		clientSecret, err := crypto.OpenStored(s.cipher, row.ClientSecret, row.ClientSecretIV)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s client secret: %w", key, err)
		}
		webhookSecret, err := crypto.OpenStored(s.cipher, row.WebhookSecret, row.WebhookSecretIV)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s webhook secret: %w", key, err)
		}

		out[key] = ProviderCredentials{
			Provider:      key,
			WebhookSecret: webhookSecret,
			ClientID:      row.ClientID,
			ClientSecret:  clientSecret,
			TokenURL:      row.TokenURL,
			APIBaseURL:    row.APIBaseURL,
		}
	}
	return out, nil
}
