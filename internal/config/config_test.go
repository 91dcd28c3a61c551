package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
database:
  host: localhost
  port: 5432
  name: billing
  user: billing
jwt:
  secret: test-secret
plans:
  aliases:
    "Plano Anual": premium_365
providers:
  Hotmart:
    enabled: true
    signature_scheme: hmac-sha256-hex
    signature_header: X-Hotmart-Signature
    webhook_secret: hot-secret
  eduzz:
    enabled: true
    signature_scheme: hmac-sha256-base64
    signature_header: X-Signature
    timeout: 5s
`

func writeConfig(t *testing.T, name, body string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o600))
	t.Setenv("CONFIG_PATH", dir)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	writeConfig(t, "billing", testConfigYAML)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, int64(1<<20), cfg.Pipeline.MaxBodyBytes)
	assert.Equal(t, "config", cfg.Credentials.Source)
	assert.Equal(t, "admin", cfg.JWT.AdminRole)

	hotmart, ok := cfg.Providers["hotmart"]
	require.True(t, ok, "provider names are lower-cased")
	assert.Equal(t, 15*time.Second, hotmart.Timeout)
	assert.Equal(t, "hot-secret", hotmart.WebhookSecret)
	assert.Equal(t, 5*time.Second, cfg.Providers["eduzz"].Timeout)

	assert.Equal(t, "premium_365", cfg.Plans.Aliases["plano anual"])
}

func TestLoad_RejectsUnknownScheme(t *testing.T) {
	writeConfig(t, "billing", `
database: {host: localhost, port: 5432, name: b, user: b}
jwt: {secret: s}
providers:
  hotmart:
    signature_scheme: md5
    signature_header: X-Sig
`)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoadRelay_Defaults(t *testing.T) {
	writeConfig(t, "relay", `
database: {host: localhost, port: 5432, name: relay, user: relay}
jwt: {secret: s}
forward:
  target_url: http://127.0.0.1:8080
`)

	cfg, err := LoadRelay()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Queue.Driver)
	assert.Equal(t, 8081, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Second, cfg.Forward.Timeout)
	assert.Equal(t, uint64(5), cfg.Forward.MaxRetries)
}

func TestLoadRelay_RedisNeedsAddr(t *testing.T) {
	writeConfig(t, "relay", `
database: {host: localhost, port: 5432, name: relay, user: relay}
jwt: {secret: s}
forward: {target_url: "http://127.0.0.1:8080"}
queue: {driver: redis}
`)

	_, err := LoadRelay()
	require.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}
