package vllm

import (
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/openaicompat"
)

// Name is the backend identifier.
const Name = "vllm"

// New creates a vLLM provider with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*openaicompat.Provider, error) {
	return openaicompat.NewProvider(openaicompat.Config{
		Name:       Name,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
		Args:       cfg.Args,
		// vLLM defaults max_tokens to the remaining context; no override needed.
		MaxTokens: 0,
	})
}

// Factory adapts New to provider.Factory.
func Factory(opts provider.Options) (provider.Provider, error) {
	return New(ConfigFromOptions(opts))
}
