// Package config provides unified configuration for modelapi.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (MODELAPI_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/engine"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/storage/postgres"
	"github.com/rhuss/modelapi/pkg/tools/mcp"
)

// Config holds all configuration for modelapi.
type Config struct {
	Providers     []ProviderConfig    `yaml:"providers"`
	Engine        EngineConfig        `yaml:"engine"`
	Storage       StorageConfig       `yaml:"storage"`
	MCP           mcp.Config          `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
}

// ProviderConfig describes one configured backend/model pair.
type ProviderConfig struct {
	// Name is how callers select the provider. Defaults to Backend.
	Name       string         `yaml:"name"`
	Backend    string         `yaml:"backend"` // registry name, e.g. "cloudflare"
	Model      string         `yaml:"model"`
	BaseURL    string         `yaml:"base_url"`
	APIKey     string         `yaml:"api_key"`
	APIKeyFile string         `yaml:"api_key_file"` // _file variant for api_key
	AccountID  string         `yaml:"account_id"`
	Timeout    time.Duration  `yaml:"timeout"`
	Args       map[string]any `yaml:"args"`

	// Generate holds per-provider generation defaults.
	Generate api.GenerateConfig `yaml:"generate"`
}

// Options converts the entry into provider construction options. Missing
// credentials are resolved from the environment by the provider.
func (p ProviderConfig) Options() provider.Options {
	var args map[string]any
	if len(p.Args) > 0 {
		args = make(map[string]any, len(p.Args))
		for k, v := range p.Args {
			args[k] = v
		}
	}
	return provider.Options{
		Model:     p.Model,
		BaseURL:   p.BaseURL,
		APIKey:    p.APIKey,
		AccountID: p.AccountID,
		Args:      args,
		Timeout:   p.Timeout,
	}
}

// EngineConfig holds retry, limiter and tool loop settings.
type EngineConfig struct {
	MaxRetries        int           `yaml:"max_retries"`     // default: 3
	InitialBackoff    time.Duration `yaml:"initial_backoff"` // default: 500ms
	MaxBackoff        time.Duration `yaml:"max_backoff"`     // default: 30s
	Timeout           time.Duration `yaml:"timeout"`         // per attempt, 0 = none
	MaxConnections    int           `yaml:"max_connections"` // per connection key, default: 10
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxToolTurns      int           `yaml:"max_tool_turns"` // default: 10
	ParallelToolCalls bool          `yaml:"parallel_tool_calls"`
	AllowedTools      []string      `yaml:"allowed_tools"`
}

// Config converts the section into engine settings sharing limiters.
func (e EngineConfig) Config(limiters *engine.Limiters) engine.Config {
	return engine.Config{
		MaxRetries:        e.MaxRetries,
		InitialBackoff:    e.InitialBackoff,
		MaxBackoff:        e.MaxBackoff,
		Timeout:           e.Timeout,
		MaxConnections:    e.MaxConnections,
		RequestsPerMinute: e.RequestsPerMinute,
		Limiters:          limiters,
		MaxToolTurns:      e.MaxToolTurns,
		ParallelToolCalls: e.ParallelToolCalls,
		AllowedTools:      e.AllowedTools,
	}
}

// Storage types.
const (
	StorageNone     = "none"
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// StorageConfig selects the ModelCall audit store.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MinConns       int32  `yaml:"min_conns"`        // default: 1
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// Store converts the section into postgres store settings.
func (p PostgresConfig) Store() postgres.Config {
	return postgres.Config{
		DSN:            p.DSN,
		MaxConns:       p.MaxConns,
		MinConns:       p.MinConns,
		MigrateOnStart: p.MigrateOnStart,
	}
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig feeds debug.Init. Environment variables take precedence.
type DebugConfig struct {
	Categories string `yaml:"categories"` // comma separated, e.g. "providers,engine"
	Level      string `yaml:"level"`      // TRACE, DEBUG, INFO, WARN, ERROR
	Format     string `yaml:"format"`     // text or json
}

// Options converts the section into debug.Init options.
func (d DebugConfig) Options() debug.Options {
	return debug.Options{Categories: d.Categories, Level: d.Level, Format: d.Format}
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MaxRetries:     engine.DefaultMaxRetries,
			InitialBackoff: engine.DefaultInitialBackoff,
			MaxBackoff:     engine.DefaultMaxBackoff,
			MaxConnections: engine.DefaultMaxConnections,
			MaxToolTurns:   engine.DefaultMaxToolTurns,
		},
		Storage: StorageConfig{
			Type:    StorageMemory,
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
				MinConns: 1,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Debug: DebugConfig{Level: "INFO"},
	}
}

// Provider returns the entry with the given name. An empty name selects
// the first configured provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if name == "" || p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
