// Package config loads service configuration files through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config exposes read access to loaded settings.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringMap(key string) map[string]interface{}
	IsSet(key string) bool
	Unmarshal(out interface{}) error
	ConfigFileUsed() string
}

type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *viperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *viperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *viperConfig) GetStringMap(key string) map[string]interface{} {
	return c.v.GetStringMap(key)
}

func (c *viperConfig) IsSet(key string) bool {
	return c.v.IsSet(key)
}

// Unmarshal decodes the merged file and environment settings into out
// using mapstructure tags.
func (c *viperConfig) Unmarshal(out interface{}) error {
	return c.v.Unmarshal(out)
}

func (c *viperConfig) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}

const configDir = "configs"

// Load reads configs/<APP_ENV>/<serviceName>.yaml, or the directory named by
// CONFIG_PATH, falling back to configs/example. Environment variables
// prefixed with the upper-cased service name override file values,
// e.g. BILLING_DATABASE_PASSWORD for database.password.
func Load(serviceName string) (Config, error) {
	v := viper.New()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	v.SetConfigType("yaml")

	v.SetEnvPrefix(strings.ToUpper(serviceName))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = filepath.Join(configDir, env)
	}

	v.SetConfigName(serviceName)
	v.AddConfigPath(configPath)

	if err := v.ReadInConfig(); err != nil {
		v.AddConfigPath(filepath.Join(configDir, "example"))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	return &viperConfig{v: v}, nil
}
