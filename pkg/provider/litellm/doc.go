// Package litellm targets a LiteLLM proxy. The proxy speaks Chat
// Completions, so New returns an openaicompat.Provider; the only addition
// is the model_mapping arg, which rewrites requested model names (for
// example "fast" to "groq/llama-3.1-8b") before each request.
package litellm
