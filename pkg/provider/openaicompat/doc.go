// Package openaicompat talks to any backend that implements the OpenAI
// Chat Completions wire protocol. Client does the HTTP round trip and
// produces the ModelCall audit record; Provider wraps a Client with a
// name, a connection key and a default max-token limit.
//
// The vllm, litellm and ollama adapters are thin configurations of
// Provider.
package openaicompat
