package openaicompat

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/provider"
)

// Config describes one OpenAI-compatible backend configuration. Backend
// packages resolve credentials and fill it in.
type Config struct {
	// Name is the backend identifier reported by Provider.Name.
	Name string

	// Model is the requested model name.
	Model string

	// BaseURL is the server URL (e.g., "http://localhost:8000").
	BaseURL string

	// APIKey for Bearer authentication (optional).
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// HTTPClient is copied and wrapped with correlation hooks.
	HTTPClient *http.Client

	// Args are merged into every request body.
	Args map[string]any

	// ModelMapper optionally rewrites the model name sent to the backend.
	ModelMapper func(string) string

	// MaxTokens is returned by Provider.MaxTokens.
	MaxTokens int

	// Capabilities overrides the default capabilities when non-nil.
	Capabilities *provider.Capabilities
}

// Provider implements provider.Provider on top of Client.
type Provider struct {
	cfg    Config
	client *Client
	caps   provider.Capabilities
	closed atomic.Bool
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// NewProvider creates a Provider. BaseURL and Model are required.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, &api.ConfigurationError{Backend: cfg.Name, Message: "BaseURL is required"}
	}
	if cfg.Model == "" {
		return nil, &api.ConfigurationError{Backend: cfg.Name, Message: "model is required"}
	}

	client := NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, cfg.HTTPClient)
	client.ModelMapper = cfg.ModelMapper

	caps := provider.Capabilities{
		ToolCalling:       true,
		NativeToolCalling: true,
		ForcedToolChoice:  true,
		Usage:             true,
	}
	if cfg.Capabilities != nil {
		caps = *cfg.Capabilities
	}

	return &Provider{cfg: cfg, client: client, caps: caps}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return p.cfg.Name }

// Model returns the requested model name.
func (p *Provider) Model() string { return p.cfg.Model }

// Capabilities returns what this provider supports.
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }

// Client returns the underlying Chat Completions client.
func (p *Provider) Client() *Client { return p.client }

// Generate performs one Chat Completions request.
func (p *Provider) Generate(ctx context.Context, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (*api.ModelOutput, *api.ModelCall, error) {
	if p.closed.Load() {
		return nil, nil, api.ErrProviderClosed
	}
	return p.client.Generate(ctx, p.cfg.Model, messages, tools, toolChoice, cfg, p.cfg.Args)
}

// ListModels queries the backend's /v1/models endpoint.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// ShouldRetry reports whether err is transient.
func (p *Provider) ShouldRetry(err error) bool {
	return provider.ShouldRetryChatAPIError(err)
}

// ConnectionKey groups calls by server and the model actually served.
// Self-hosted servers throttle per deployment, so the API key does not
// take part.
func (p *Provider) ConnectionKey() string {
	return p.client.BaseURL() + "/" + p.client.MapModel(p.cfg.Model)
}

// MaxTokens returns the configured default output cap.
func (p *Provider) MaxTokens() int { return p.cfg.MaxTokens }

// Close releases provider resources.
func (p *Provider) Close() error {
	p.closed.Store(true)
	return p.client.Close()
}
