package litellm

import (
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/openaicompat"
)

// Name is the backend identifier.
const Name = "litellm"

// New creates a LiteLLM provider with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*openaicompat.Provider, error) {
	var mapper func(string) string

	// If model mapping is configured, set a mapper on the client.
	if len(cfg.ModelMapping) > 0 {
		mapping := cfg.ModelMapping
		mapper = func(model string) string {
			if mapped, ok := mapping[model]; ok {
				return mapped
			}
			return model
		}
	}

	return openaicompat.NewProvider(openaicompat.Config{
		Name:        Name,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.Timeout,
		HTTPClient:  cfg.HTTPClient,
		Args:        cfg.Args,
		ModelMapper: mapper,
		MaxTokens:   provider.DefaultMaxTokens,
	})
}

// Factory adapts New to provider.Factory.
func Factory(opts provider.Options) (provider.Provider, error) {
	return New(ConfigFromOptions(opts))
}
