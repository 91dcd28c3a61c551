package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	pkgconfig "github.com/wekeepgrowing/semo-billing-webhooks/pkg/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/pkg/logger"
)

const (
	serverServiceName = "billing"
	relayServiceName  = "relay"
)

// Config is the main application configuration.
type Config struct {
	Service     ServiceConfig             `mapstructure:"service"`
	Database    DatabaseConfig            `mapstructure:"database"`
	Server      ServerConfig              `mapstructure:"server"`
	Log         logger.Config             `mapstructure:"log"`
	JWT         JWTConfig                 `mapstructure:"jwt"`
	Pipeline    PipelineConfig            `mapstructure:"pipeline"`
	Plans       PlansConfig               `mapstructure:"plans"`
	Credentials CredentialsConfig         `mapstructure:"credentials"`
	Providers   map[string]ProviderConfig `mapstructure:"providers" validate:"required,min=1,dive"`
}

// PipelineConfig tunes asynchronous processing of logged webhooks.
type PipelineConfig struct {
	Workers        int           `mapstructure:"workers" validate:"min=0"`
	QueueSize      int           `mapstructure:"queue_size" validate:"min=0"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	// Records left in received or processing longer than StaleAfter are
	// picked up again by the sweeper.
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	DedupCache    int           `mapstructure:"dedup_cache"`
}

// PlansConfig maps provider plan names onto canonical plan identifiers.
type PlansConfig struct {
	Aliases map[string]string `mapstructure:"aliases"`
}

// CredentialsConfig selects where provider secrets come from.
type CredentialsConfig struct {
	// Source is config, file or database.
	Source          string        `mapstructure:"source" validate:"omitempty,oneof=config file database"`
	FilePath        string        `mapstructure:"file_path" validate:"required_if=Source file"`
	EncryptionKey   string        `mapstructure:"encryption_key" validate:"omitempty,hexadecimal,len=64"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// ProviderConfig describes one webhook source.
type ProviderConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// SignatureScheme is hmac-sha256-hex, hmac-sha256-base64, token or stripe.
	SignatureScheme        string `mapstructure:"signature_scheme" validate:"required,oneof=hmac-sha256-hex hmac-sha256-base64 token stripe"`
	SignatureHeader        string `mapstructure:"signature_header" validate:"required"`
	RejectInvalidSignature bool   `mapstructure:"reject_invalid_signature"`

	// Inline credentials, used when credentials.source is config.
	WebhookSecret string `mapstructure:"webhook_secret"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`

	TokenURL   string        `mapstructure:"token_url" validate:"omitempty,url"`
	APIBaseURL string        `mapstructure:"api_base_url" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads the main application configuration.
func Load() (*Config, error) {
	loadDotEnv()

	raw, err := pkgconfig.Load(serverServiceName)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := raw.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = serverServiceName
	}
	c.Database.applyDefaults()

	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.GRPC.Port == 0 {
		c.Server.GRPC.Port = 9090
	}
	if c.JWT.AdminRole == "" {
		c.JWT.AdminRole = "admin"
	}

	p := &c.Pipeline
	if p.Workers == 0 {
		p.Workers = 4
	}
	if p.QueueSize == 0 {
		p.QueueSize = 256
	}
	if p.ProcessTimeout == 0 {
		p.ProcessTimeout = 30 * time.Second
	}
	if p.StaleAfter == 0 {
		p.StaleAfter = 5 * time.Minute
	}
	if p.SweepInterval == 0 {
		p.SweepInterval = time.Minute
	}
	if p.SweepBatch == 0 {
		p.SweepBatch = 100
	}
	if p.MaxBodyBytes == 0 {
		p.MaxBodyBytes = 1 << 20
	}
	if p.DedupCache == 0 {
		p.DedupCache = 4096
	}

	if c.Credentials.Source == "" {
		c.Credentials.Source = "config"
	}

	normalized := make(map[string]ProviderConfig, len(c.Providers))
	for name, pc := range c.Providers {
		if pc.Timeout == 0 {
			pc.Timeout = 15 * time.Second
		}
		normalized[strings.ToLower(name)] = pc
	}
	c.Providers = normalized

	aliases := make(map[string]string, len(c.Plans.Aliases))
	for k, v := range c.Plans.Aliases {
		aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.Plans.Aliases = aliases
}

// loadDotEnv loads .env when present so local runs can keep secrets out of
// the yaml files.
func loadDotEnv() {
	_ = godotenv.Load()
}
