package provider

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/rhuss/modelapi/pkg/api"
)

// ShouldRetryChatAPIError is the shared retry classifier for HTTP JSON
// backends.
//
// Retryable: timeouts, connection resets and other network failures,
// HTTP 408 (a server-side timeout), 429 and 5xx responses, and backend
// failures flagged as transient. Not retryable: configuration errors,
// malformed or unexpected responses, other 4xx responses, non-transient
// backend failures, and caller cancellation.
func ShouldRetryChatAPIError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, api.ErrProviderClosed) {
		return false
	}

	var cfgErr *api.ConfigurationError
	if errors.As(err, &cfgErr) {
		return false
	}
	var invalid *api.InvalidRequestError
	if errors.As(err, &invalid) {
		return false
	}
	var protoErr *api.ProtocolError
	if errors.As(err, &protoErr) {
		return false
	}

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return RetryableStatus(statusErr.StatusCode)
	}

	var backendErr *api.BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Transient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if isTransientNetworkError(err) {
		return true
	}

	var transportErr *api.TransportError
	if errors.As(err, &transportErr) {
		// Certificate problems do not heal on retry.
		var unknownAuthority x509.UnknownAuthorityError
		var hostnameErr x509.HostnameError
		var certInvalid x509.CertificateInvalidError
		if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) || errors.As(err, &certInvalid) {
			return false
		}
		return true
	}
	return false
}

// RetryableStatus reports whether an HTTP status code indicates a
// transient condition.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

func isTransientNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return false
}
