package openaicompat

import (
	"github.com/rhuss/modelapi/pkg/provider"
)

const (
	// OllamaName is the backend identifier for Ollama servers.
	OllamaName = "ollama"

	EnvOllamaBaseURL     = "OLLAMA_BASE_URL"
	DefaultOllamaBaseURL = "http://localhost:11434"
)

// NewOllama creates a Provider for an Ollama server through its
// OpenAI-compatible endpoint. No API key is needed.
func NewOllama(opts provider.Options) (provider.Provider, error) {
	baseURL := opts.Resolve(opts.BaseURL, EnvOllamaBaseURL)
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	return NewProvider(Config{
		Name:       OllamaName,
		Model:      opts.Model,
		BaseURL:    baseURL,
		APIKey:     opts.APIKey,
		Timeout:    opts.Timeout,
		HTTPClient: opts.HTTPClient,
		Args:       opts.CloneArgs(),
		// Ollama caps generation at a small num_predict unless told otherwise.
		MaxTokens: provider.DefaultMaxTokens,
	})
}
