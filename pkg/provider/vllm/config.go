package vllm

import (
	"net/http"
	"time"

	"github.com/rhuss/modelapi/pkg/provider"
)

const (
	EnvAPIKey  = "VLLM_API_KEY"
	EnvBaseURL = "VLLM_BASE_URL"

	// DefaultBaseURL is where `vllm serve` listens by default.
	DefaultBaseURL = "http://localhost:8000"
)

// Config holds configuration for the vLLM provider adapter.
type Config struct {
	// Model is the served model name.
	Model string

	// BaseURL is the vLLM server URL (e.g., "http://localhost:8000").
	BaseURL string

	// APIKey for vLLM authentication (optional, see `vllm serve --api-key`).
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// HTTPClient overrides the transport client.
	HTTPClient *http.Client

	// Args holds vLLM sampling extensions (e.g., repetition_penalty,
	// guided_json) merged into every request.
	Args map[string]any
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(model string) Config {
	return Config{
		Model:   model,
		BaseURL: DefaultBaseURL,
		Timeout: 120 * time.Second,
	}
}

// ConfigFromOptions resolves a Config from provider options, reading
// VLLM_BASE_URL and VLLM_API_KEY when not given explicitly.
func ConfigFromOptions(opts provider.Options) Config {
	cfg := DefaultConfig(opts.Model)
	if baseURL := opts.Resolve(opts.BaseURL, EnvBaseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.APIKey = opts.Resolve(opts.APIKey, EnvAPIKey)
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	cfg.HTTPClient = opts.HTTPClient
	cfg.Args = opts.CloneArgs()
	return cfg
}
