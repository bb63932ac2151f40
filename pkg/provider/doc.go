// Package provider defines the contract every model backend adapter
// implements. An adapter turns canonical messages and tools (pkg/api) into
// one backend request, issues it, and returns the parsed output together
// with a ModelCall audit record. Adapters never retry; callers consult
// ShouldRetry and group concurrent calls by ConnectionKey.
package provider
