package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rhuss/modelapi/pkg/engine"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/storage"
	"github.com/rhuss/modelapi/pkg/storage/memory"
	"github.com/rhuss/modelapi/pkg/storage/postgres"
)

// OpenStore opens the configured ModelCall audit store. It returns a nil
// store for storage type "none".
func OpenStore(ctx context.Context, sc StorageConfig) (storage.CallStore, error) {
	switch sc.Type {
	case StorageNone, "":
		slog.Info("storage disabled")
		return nil, nil
	case StorageMemory:
		slog.Info("storage enabled", "type", "memory", "max_size", sc.MaxSize)
		return memory.New(sc.MaxSize), nil
	case StoragePostgres:
		store, err := postgres.New(ctx, sc.Postgres.Store())
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", sc.Type)
	}
}

// NewModel constructs the named provider through reg and wraps it in an
// engine.Model. An empty name selects the first configured provider.
func (c *Config) NewModel(reg *provider.Registry, name string, store storage.CallStore, limiters *engine.Limiters) (*engine.Model, ProviderConfig, error) {
	pc, ok := c.Provider(name)
	if !ok {
		if name == "" {
			return nil, ProviderConfig{}, fmt.Errorf("no providers configured")
		}
		return nil, ProviderConfig{}, fmt.Errorf("provider %q is not configured", name)
	}

	p, err := reg.New(pc.Backend, pc.Options())
	if err != nil {
		return nil, pc, fmt.Errorf("creating provider %q: %w", pc.Name, err)
	}
	m, err := engine.New(p, store, c.Engine.Config(limiters))
	if err != nil {
		p.Close()
		return nil, pc, err
	}
	return m, pc, nil
}
