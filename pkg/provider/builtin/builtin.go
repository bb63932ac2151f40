// Package builtin registers every backend shipped with this module.
package builtin

import (
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/anthropic"
	"github.com/rhuss/modelapi/pkg/provider/cloudflare"
	"github.com/rhuss/modelapi/pkg/provider/litellm"
	"github.com/rhuss/modelapi/pkg/provider/openai"
	"github.com/rhuss/modelapi/pkg/provider/openaicompat"
	"github.com/rhuss/modelapi/pkg/provider/vllm"
)

// Registry returns a registry populated with all built-in backends.
func Registry() *provider.Registry {
	r := provider.NewRegistry()
	Register(r)
	return r
}

// Register adds the built-in backends to r.
func Register(r *provider.Registry) {
	r.Register(cloudflare.Name, cloudflare.Factory)
	r.Register(vllm.Name, vllm.Factory)
	r.Register(litellm.Name, litellm.Factory)
	r.Register(openaicompat.OllamaName, openaicompat.NewOllama)
	r.Register(openai.Name, func(opts provider.Options) (provider.Provider, error) {
		return openai.New(opts)
	})
	r.Register(anthropic.Name, func(opts provider.Options) (provider.Provider, error) {
		return anthropic.New(opts)
	})
}
