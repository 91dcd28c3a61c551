package config

import "fmt"

type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	// CORSOrigins lists admin UI origins allowed to call the admin routes.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
}

func (c GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

// JWTConfig configures admin token validation.
type JWTConfig struct {
	Secret    string `mapstructure:"secret" validate:"required"`
	AdminRole string `mapstructure:"admin_role"`
}
