// Package openai implements the Provider interface for the OpenAI Chat
// Completions API through the official openai-go SDK.
//
// SDK retries are disabled; retry policy belongs to the caller, which
// consults ShouldRetry.
package openai
