package api

import (
	"errors"
	"fmt"
	"time"
)

// ErrProviderClosed is returned by Generate after the provider was closed.
var ErrProviderClosed = errors.New("provider is closed")

// ConfigurationError reports a mandatory credential or setting that could
// not be resolved when a provider was constructed.
type ConfigurationError struct {
	Backend  string
	Variable string
	Message  string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	}
	return fmt.Sprintf("%s: environment prerequisite error: %s is not set", e.Backend, e.Variable)
}

// NewConfigurationError creates a ConfigurationError for a missing variable.
func NewConfigurationError(backend, variable string) *ConfigurationError {
	return &ConfigurationError{Backend: backend, Variable: variable}
}

// BackendError reports a structured failure returned by the backend itself,
// for example a Cloudflare envelope with "success": false. Payload holds the
// backend's own error text.
type BackendError struct {
	Model     string
	Payload   string
	Transient bool
	Call      *ModelCall
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("Error calling %s: %s", e.Model, e.Payload)
}

// TransportError reports a network failure before any response was
// received. It wraps the underlying error.
type TransportError struct {
	Op  string
	URL string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
	Call       *ModelCall
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, body)
}

// ProtocolError reports a response that did not match the expected wire
// shape.
type ProtocolError struct {
	Message string
	Body    string
	Err     error
	Call    *ModelCall
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Message, e.Err)
	}
	return "protocol error: " + e.Message
}

// Unwrap returns the decode error, if any.
func (e *ProtocolError) Unwrap() error { return e.Err }

// FailedCall returns the audit record attached to a failure, if the error
// (or anything it wraps) carries one.
func FailedCall(err error) *ModelCall {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Call
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Call
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Call
	}
	return nil
}
