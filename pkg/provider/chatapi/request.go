package chatapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/debug"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Response is the raw result of a successful (2xx) JSON POST.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// PostJSON sends body to url and returns the response.
//
// Network failures are returned as *api.TransportError wrapping the
// underlying error. Non-2xx responses are returned as *api.StatusError
// carrying the response body and any Retry-After hint.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	debug.Log(debug.Providers, "chat api request", "method", http.MethodPost, "url", url, "body_bytes", len(body))
	debug.Raw(debug.Providers, fmt.Sprintf(">>> POST %s\n%s", url, body))

	resp, err := client.Do(req)
	if err != nil {
		return nil, &api.TransportError{Op: http.MethodPost, URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &api.TransportError{Op: "read response", URL: url, Err: err}
	}

	debug.Log(debug.Providers, "chat api response", "status", resp.StatusCode, "body_bytes", len(respBody))
	debug.Raw(debug.Providers, fmt.Sprintf("<<< %d %s\n%s", resp.StatusCode, url, respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &api.StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// ParseRetryAfter parses a Retry-After header given in seconds or as an
// HTTP date. It returns 0 when the header is absent or invalid.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
