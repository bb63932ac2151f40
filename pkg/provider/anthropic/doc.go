// Package anthropic implements the Provider interface for the Anthropic
// Messages API through the official anthropic-sdk-go client.
package anthropic
