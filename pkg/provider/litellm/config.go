package litellm

import (
	"net/http"
	"time"

	"github.com/rhuss/modelapi/pkg/provider"
)

const (
	EnvAPIKey  = "LITELLM_API_KEY"
	EnvBaseURL = "LITELLM_BASE_URL"

	// DefaultBaseURL is the LiteLLM proxy's default listen address.
	DefaultBaseURL = "http://localhost:4000"

	// ArgModelMapping is the Args key holding a model mapping. It is
	// consumed by the adapter and never sent to the proxy.
	ArgModelMapping = "model_mapping"
)

// Config holds configuration for the LiteLLM provider adapter.
type Config struct {
	// Model is the requested model name, before mapping.
	Model string

	// BaseURL is the LiteLLM proxy URL (e.g., "http://localhost:4000").
	BaseURL string

	// APIKey for LiteLLM authentication (optional).
	APIKey string

	// Timeout for individual HTTP requests. Defaults to 120s.
	Timeout time.Duration

	// HTTPClient overrides the transport client.
	HTTPClient *http.Client

	// Args are merged into every request body.
	Args map[string]any

	// ModelMapping maps requested model names to LiteLLM model identifiers.
	// For example: {"gpt-4": "openai/gpt-4", "claude": "anthropic/claude-3-opus"}.
	// If a model is not in the map, it is passed through unchanged.
	ModelMapping map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 120 * time.Second,
	}
}

// ConfigFromOptions resolves a Config from provider options. A mapping
// under Args["model_mapping"] (map[string]string or map[string]any) is
// lifted into ModelMapping.
func ConfigFromOptions(opts provider.Options) Config {
	baseURL := opts.Resolve(opts.BaseURL, EnvBaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cfg := DefaultConfig(baseURL)
	cfg.Model = opts.Model
	cfg.APIKey = opts.Resolve(opts.APIKey, EnvAPIKey)
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}
	cfg.HTTPClient = opts.HTTPClient

	args := opts.CloneArgs()
	if raw, ok := args[ArgModelMapping]; ok {
		cfg.ModelMapping = modelMapping(raw)
		delete(args, ArgModelMapping)
	}
	cfg.Args = args
	return cfg
}

func modelMapping(raw any) map[string]string {
	switch m := raw.(type) {
	case map[string]string:
		return m
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}
