// Package engine is the reference consumer of the provider contract.
//
// Model wraps a provider.Provider and adds what a caller is expected to do
// around Generate: validation, the provider's token-limit default, a
// per-connection-key concurrency limit with optional request pacing,
// retries with exponential backoff for errors the provider classifies as
// retryable, metrics for every attempt, and an optional audit log of
// ModelCall records. Run drives a tool-using conversation on top of Model,
// dispatching tool calls to tools.ToolExecutor implementations.
// Optional capabilities (storage, tools) use nil-safe composition.
package engine
