// Package vllm implements the Provider interface for vLLM servers. vLLM
// serves an OpenAI-compatible Chat Completions API, so the adapter resolves
// credentials and delegates HTTP communication to openaicompat.
package vllm
