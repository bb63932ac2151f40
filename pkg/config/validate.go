package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	seen := make(map[string]bool)
	for i, p := range c.Providers {
		if p.Backend == "" {
			errs = append(errs, fmt.Errorf("providers[%d].backend is required", i))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("providers[%d].model is required", i))
		}
		if p.Name != "" {
			if seen[p.Name] {
				errs = append(errs, fmt.Errorf("providers[%d]: duplicate provider name %q", i, p.Name))
			}
			seen[p.Name] = true
		}
		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers[%d].timeout must be >= 0", i))
		}
	}

	if c.Engine.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("engine.max_connections must be >= 0, got %d", c.Engine.MaxConnections))
	}
	if c.Engine.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("engine.requests_per_minute must be >= 0, got %d", c.Engine.RequestsPerMinute))
	}
	if c.Engine.InitialBackoff < 0 || c.Engine.MaxBackoff < 0 || c.Engine.Timeout < 0 {
		errs = append(errs, fmt.Errorf("engine durations must be >= 0"))
	}
	if c.Engine.MaxBackoff > 0 && c.Engine.InitialBackoff > c.Engine.MaxBackoff {
		errs = append(errs, fmt.Errorf("engine.initial_backoff (%v) exceeds engine.max_backoff (%v)",
			c.Engine.InitialBackoff, c.Engine.MaxBackoff))
	}

	switch c.Storage.Type {
	case StorageNone, StorageMemory, StoragePostgres:
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"none\", \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}
	if c.Storage.Type == StorageMemory && c.Storage.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.max_size must be > 0, got %d", c.Storage.MaxSize))
	}
	if c.Storage.Type == StoragePostgres && c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
		errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
	}

	if err := c.MCP.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
