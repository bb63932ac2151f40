package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/tools/mcp"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, MODELAPI_CONFIG env, ./modelapi.yaml, /etc/modelapi/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log(debug.Config, "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	applyProviderNames(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. MODELAPI_CONFIG environment variable
// 3. ./modelapi.yaml in the current directory
// 4. /etc/modelapi/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("MODELAPI_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"modelapi.yaml",
		"/etc/modelapi/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps MODELAPI_* environment variables to config fields.
// Malformed numeric values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	// MODELAPI_MODEL selects a "backend/model" pair. It replaces the model
	// of the provider with that backend, or prepends a new entry.
	if v := os.Getenv("MODELAPI_MODEL"); v != "" {
		backend, model, err := provider.ParseModel(v)
		if err != nil {
			return fmt.Errorf("MODELAPI_MODEL: %w", err)
		}
		found := false
		for i := range cfg.Providers {
			if strings.EqualFold(cfg.Providers[i].Backend, backend) {
				cfg.Providers[i].Model = model
				found = true
				break
			}
		}
		if !found {
			cfg.Providers = append([]ProviderConfig{{Backend: backend, Model: model}}, cfg.Providers...)
		}
	}
	if v := os.Getenv("MODELAPI_BASE_URL"); v != "" && len(cfg.Providers) > 0 {
		cfg.Providers[0].BaseURL = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"MODELAPI_MAX_RETRIES", &cfg.Engine.MaxRetries},
		{"MODELAPI_MAX_CONNECTIONS", &cfg.Engine.MaxConnections},
		{"MODELAPI_REQUESTS_PER_MINUTE", &cfg.Engine.RequestsPerMinute},
		{"MODELAPI_MAX_TOOL_TURNS", &cfg.Engine.MaxToolTurns},
		{"MODELAPI_STORAGE_SIZE", &cfg.Storage.MaxSize},
	}
	for _, e := range ints {
		if v := os.Getenv(e.env); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.env, err)
			}
			*e.dst = n
		}
	}
	if v := os.Getenv("MODELAPI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MODELAPI_TIMEOUT: %w", err)
		}
		cfg.Engine.Timeout = d
	}

	if v := os.Getenv("MODELAPI_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("MODELAPI_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}

	// MODELAPI_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("MODELAPI_MCP_SERVERS"); v != "" {
		var servers []mcp.ServerConfig
		if err := yaml.Unmarshal([]byte(v), &servers); err != nil {
			return fmt.Errorf("MODELAPI_MCP_SERVERS: %w", err)
		}
		cfg.MCP.Servers = servers
	}
	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKeyFile != "" && p.APIKey == "" {
			val, err := readSecretFile(p.APIKeyFile)
			if err != nil {
				return fmt.Errorf("providers[%d].api_key_file: %w", i, err)
			}
			p.APIKey = val
		}
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	for i := range cfg.MCP.Servers {
		auth := &cfg.MCP.Servers[i].Auth
		if auth.ClientSecretFile != "" && auth.ClientSecret == "" {
			val, err := readSecretFile(auth.ClientSecretFile)
			if err != nil {
				return fmt.Errorf("mcp.servers[%d].auth.client_secret_file: %w", i, err)
			}
			auth.ClientSecret = val
		}
	}

	return nil
}

// applyProviderNames defaults each provider's name to its backend.
func applyProviderNames(cfg *Config) {
	for i := range cfg.Providers {
		if cfg.Providers[i].Name == "" {
			cfg.Providers[i].Name = strings.ToLower(cfg.Providers[i].Backend)
		}
	}
	if len(cfg.Providers) == 0 {
		slog.Debug("no providers configured")
	}
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
