// Package config loads, validates and watches PenchY's three config
// surfaces: the server's own runtime config, Job descriptors, and
// NodeSetting records (spec.md §3). The server surface is koanf-based
// (struct defaults overlaid by environment variables); Job and NodeSetting
// are plain YAML, validated with the same helpers. Merge is available for
// overlays, but none of the loaders applies it.
package config

import (
	"context"
	"time"
)

// ServerConfig is the control node's own runtime configuration: where it
// binds its RPC surface and how aggressively its reception loop polls for
// timed-out nodes.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" mapstructure:"host" env:"SERVER_HOST" validate:"required"`
	Port int    `json:"port" yaml:"port" mapstructure:"port" env:"SERVER_PORT" validate:"required,gt=0,lt=65536"`

	// PollInterval is how often the reception loop checks for nodes whose
	// composition deadline has elapsed (spec.md §4.8).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" mapstructure:"poll_interval" env:"SERVER_POLL_INTERVAL" validate:"required"`

	// ShutdownTimeout bounds graceful drain of in-flight RPCs when the
	// server shuts down.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`

	MonitoringEnabled bool   `json:"monitoring_enabled" yaml:"monitoring_enabled" mapstructure:"monitoring_enabled" env:"SERVER_MONITORING_ENABLED"`
	MonitoringPath    string `json:"monitoring_path" yaml:"monitoring_path" mapstructure:"monitoring_path" env:"SERVER_MONITORING_PATH"`
}

// DefaultServerConfig returns the config a bare `penchy serve` starts with.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:              "0.0.0.0",
		Port:              8090,
		PollInterval:      5 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		MonitoringEnabled: true,
		MonitoringPath:    "/metrics",
	}
}

type ctxKey string

const configCtxKey ctxKey = "penchy_server_config"

// ContextWithConfig returns a child context carrying cfg.
func ContextWithConfig(ctx context.Context, cfg *ServerConfig) context.Context {
	return context.WithValue(ctx, configCtxKey, cfg)
}

// FromContext returns the ServerConfig stored in ctx, or DefaultServerConfig
// if none is present.
func FromContext(ctx context.Context) *ServerConfig {
	if ctx != nil {
		if cfg, ok := ctx.Value(configCtxKey).(*ServerConfig); ok && cfg != nil {
			return cfg
		}
	}
	return DefaultServerConfig()
}
