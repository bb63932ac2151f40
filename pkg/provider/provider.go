package provider

import (
	"context"

	"github.com/rhuss/modelapi/pkg/api"
)

// DefaultMaxTokens is the output token cap applied when a backend's native
// default is too low for multi-step reasoning workloads.
const DefaultMaxTokens = 4096

// Provider abstracts one model backend configuration (backend, model and
// credentials). A Provider is constructed once, used for any number of
// concurrent Generate calls, and closed once.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// Name returns the backend identifier (e.g., "cloudflare", "vllm").
	Name() string

	// Model returns the model name the provider was constructed for.
	Model() string

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// Generate issues exactly one backend request. On success it returns
	// the parsed output and the audit record of the round trip. On failure
	// it returns a nil output and a nil ModelCall; typed errors from pkg/api
	// may carry the attempted call (see api.FailedCall).
	Generate(ctx context.Context, messages []api.ChatMessage, tools []api.ToolInfo,
		toolChoice api.ToolChoice, cfg api.GenerateConfig) (*api.ModelOutput, *api.ModelCall, error)

	// ShouldRetry reports whether err is a transient failure that the caller
	// may retry with backoff. It has no side effects.
	ShouldRetry(err error) bool

	// ConnectionKey returns the rate-limit bucket this provider's calls
	// belong to. It is a pure function of the provider's identity.
	ConnectionKey() string

	// MaxTokens returns the output cap callers should apply when the
	// request does not set one. Zero means the backend default is fine.
	MaxTokens() int

	// Close releases the transport client. Generate must not be called
	// afterwards.
	Close() error
}
