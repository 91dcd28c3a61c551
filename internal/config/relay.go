package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	pkgconfig "github.com/wekeepgrowing/semo-billing-webhooks/pkg/config"
	"github.com/wekeepgrowing/semo-billing-webhooks/pkg/logger"
)

// RelayConfig configures the standalone delivery listener.
type RelayConfig struct {
	Service  ServiceConfig  `mapstructure:"service"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      logger.Config  `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Forward  ForwardConfig  `mapstructure:"forward"`
	Queue    QueueConfig    `mapstructure:"queue"`
}

// ForwardConfig describes how deliveries reach the main application.
type ForwardConfig struct {
	// TargetURL is the main ingress base URL, e.g. http://127.0.0.1:8080.
	TargetURL string `mapstructure:"target_url" validate:"required,url"`
	// HealthAddr is the main gRPC health endpoint; empty disables the check.
	HealthAddr      string        `mapstructure:"health_addr"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      uint64        `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Workers         int           `mapstructure:"workers"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// QueueConfig selects the delivery queue backend.
type QueueConfig struct {
	Driver      string        `mapstructure:"driver" validate:"omitempty,oneof=memory redis"`
	Size        int           `mapstructure:"size"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// LoadRelay reads the relay configuration.
func LoadRelay() (*RelayConfig, error) {
	loadDotEnv()

	raw, err := pkgconfig.Load(relayServiceName)
	if err != nil {
		return nil, err
	}

	var cfg RelayConfig
	if err := raw.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relay config: %w", err)
	}

	cfg.applyDefaults()
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	if cfg.Queue.Driver == "redis" && cfg.Queue.Redis.Addr == "" {
		return nil, fmt.Errorf("invalid relay config: queue.redis.addr is required for the redis driver")
	}
	return &cfg, nil
}

func (c *RelayConfig) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = relayServiceName
	}
	c.Database.applyDefaults()
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8081
	}
	if c.JWT.AdminRole == "" {
		c.JWT.AdminRole = "admin"
	}

	f := &c.Forward
	if f.Timeout == 0 {
		f.Timeout = 15 * time.Second
	}
	if f.MaxRetries == 0 {
		f.MaxRetries = 5
	}
	if f.InitialInterval == 0 {
		f.InitialInterval = 500 * time.Millisecond
	}
	if f.MaxInterval == 0 {
		f.MaxInterval = 30 * time.Second
	}
	if f.Workers == 0 {
		f.Workers = 2
	}
	if f.MaxBodyBytes == 0 {
		f.MaxBodyBytes = 1 << 20
	}

	q := &c.Queue
	if q.Driver == "" {
		q.Driver = "memory"
	}
	if q.Size == 0 {
		q.Size = 1024
	}
	if q.PollTimeout == 0 {
		q.PollTimeout = 2 * time.Second
	}
	if q.Redis.Key == "" {
		q.Redis.Key = "relay:deliveries"
	}
}
