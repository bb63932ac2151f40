package provider

import (
	"context"
	"net/http"
	"time"
)

// Capabilities declares what features the backend supports.
// Used by callers for early request validation.
type Capabilities struct {
	// ToolCalling indicates whether the provider supports function/tool calls.
	ToolCalling bool

	// NativeToolCalling is false when tool calls are emulated through the
	// prompt (for example the Llama 3.1 <function=...> convention).
	NativeToolCalling bool

	// ForcedToolChoice indicates whether forced(name) is honored.
	ForcedToolChoice bool

	// Usage indicates whether the backend reports token usage.
	Usage bool

	// MaxContextWindow is the maximum token count (0 = unknown/unlimited).
	MaxContextWindow int
}

// Options carries the identity of a provider: everything that is fixed for
// its lifetime. Empty credential fields are resolved from Credentials
// during construction.
type Options struct {
	// Model is the backend model name.
	Model string

	// BaseURL overrides the backend endpoint.
	BaseURL string

	// APIKey authenticates requests.
	APIKey string

	// AccountID is the tenant/account identifier for backends that need one.
	AccountID string

	// Args holds backend-specific extra request arguments.
	Args map[string]any

	// Credentials resolves missing credentials. Nil means EnvCredentials.
	Credentials Credentials

	// HTTPClient overrides the transport client. The provider installs its
	// correlation hooks on a copy; the given client is not modified.
	HTTPClient *http.Client

	// Timeout bounds a single request. Zero means no timeout beyond the
	// caller's context.
	Timeout time.Duration
}

// Resolve returns the explicit value when set, otherwise looks name up in
// the configured Credentials.
func (o Options) Resolve(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	if name == "" {
		return ""
	}
	v, _ := o.credentials().Lookup(name)
	return v
}

// Require is like Resolve but fails with a ConfigurationError naming the
// backend and the variable when no value is found.
func (o Options) Require(backend, explicit, name string) (string, error) {
	if v := o.Resolve(explicit, name); v != "" {
		return v, nil
	}
	return "", newConfigurationError(backend, name)
}

func (o Options) credentials() Credentials {
	if o.Credentials == nil {
		return EnvCredentials{}
	}
	return o.Credentials
}

// CloneArgs returns a shallow copy of Args, never nil.
func (o Options) CloneArgs() map[string]any {
	out := make(map[string]any, len(o.Args))
	for k, v := range o.Args {
		out[k] = v
	}
	return out
}

// ModelInfo holds information about a model served by the backend.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelLister is implemented by providers whose backend can enumerate the
// models it serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}
