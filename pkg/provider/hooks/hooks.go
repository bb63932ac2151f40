// Package hooks correlates outbound backend requests with their timing.
//
// Each provider owns one Hooks registry. Generate calls StartRequest to
// obtain a correlation id, sends it in the RequestIDHeader, and calls
// EndRequest exactly once (usually deferred) to obtain the elapsed time
// and release the entry.
package hooks

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/modelapi/pkg/debug"
)

// RequestIDHeader carries the correlation id on every outbound request.
const RequestIDHeader = "X-Request-ID"

// Stats counts registry activity. Pending is the number of started
// requests that have not ended.
type Stats struct {
	Started int64
	Ended   int64
	Pending int
}

// Hooks is a concurrent registry of in-flight request start times.
type Hooks struct {
	mu      sync.Mutex
	starts  map[string]time.Time
	started int64
	ended   int64
	now     func() time.Time
}

// New creates an empty registry.
func New() *Hooks {
	return &Hooks{
		starts: make(map[string]time.Time),
		now:    time.Now,
	}
}

// StartRequest registers a new request and returns its correlation id.
func (h *Hooks) StartRequest() string {
	id := uuid.NewString()
	h.mu.Lock()
	h.starts[id] = h.now()
	h.started++
	h.mu.Unlock()
	debug.Log(debug.Hooks, "request started", "request_id", id)
	return id
}

// EndRequest releases the entry for id and returns the time elapsed since
// the request was sent. Ending an unknown or already-ended id returns 0.
func (h *Hooks) EndRequest(id string) time.Duration {
	h.mu.Lock()
	start, ok := h.starts[id]
	if ok {
		delete(h.starts, id)
		h.ended++
	}
	h.mu.Unlock()
	if !ok {
		return 0
	}
	elapsed := h.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	debug.Log(debug.Hooks, "request ended", "request_id", id, "elapsed", elapsed)
	return elapsed
}

// markSent resets the start time for id to now. Time spent between
// StartRequest and the transport actually sending the request (request
// encoding, waiting on limiters) is not counted.
func (h *Hooks) markSent(id string) {
	h.mu.Lock()
	if _, ok := h.starts[id]; ok {
		h.starts[id] = h.now()
	}
	h.mu.Unlock()
}

// Pending returns the number of requests started but not ended.
func (h *Hooks) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.starts)
}

// Stats returns a snapshot of the registry counters.
func (h *Hooks) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Started: h.started, Ended: h.ended, Pending: len(h.starts)}
}

// Transport wraps base so that requests carrying a registered correlation
// id restart their timer when they are handed to the network.
func (h *Hooks) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{hooks: h, base: base}
}

// Client returns a copy of base (or a new client when base is nil) whose
// transport is wrapped by Transport. A nil transport gets a private clone
// of http.DefaultTransport, so closing this client's idle connections
// leaves other clients alone.
func (h *Hooks) Client(base *http.Client) *http.Client {
	var c http.Client
	if base != nil {
		c = *base
	}
	if c.Transport == nil {
		c.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	c.Transport = h.Transport(c.Transport)
	return &c
}

type roundTripper struct {
	hooks *Hooks
	base  http.RoundTripper
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if id := req.Header.Get(RequestIDHeader); id != "" {
		rt.hooks.markSent(id)
	}
	return rt.base.RoundTrip(req)
}

// CloseIdleConnections forwards to the wrapped transport so that
// http.Client.CloseIdleConnections reaches it.
func (rt *roundTripper) CloseIdleConnections() {
	if c, ok := rt.base.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
