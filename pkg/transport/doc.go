// Package transport provides net/http middleware shared by the HTTP servers
// in this module: panic recovery, request ID assignment (X-Request-ID) and
// structured access logging via log/slog.
//
// Middleware composes with Chain. The first middleware in the chain is the
// outermost wrapper.
package transport
