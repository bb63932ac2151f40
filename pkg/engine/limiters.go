package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/observability"
)

// Limiters holds the concurrency and pacing state for each connection key.
// Models whose providers report the same ConnectionKey share one entry, so
// the limits apply to the backend connection rather than to a single Model.
// The first Model to use a key fixes that key's limits.
type Limiters struct {
	mu    sync.Mutex
	byKey map[string]*limiter
}

type limiter struct {
	sem  *semaphore.Weighted
	pace *rate.Limiter
}

// defaultLimiters is shared by Models configured without a registry.
var defaultLimiters = NewLimiters()

// NewLimiters creates an empty registry.
func NewLimiters() *Limiters {
	return &Limiters{byKey: make(map[string]*limiter)}
}

// Len returns the number of connection keys seen so far.
func (l *Limiters) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

func (l *Limiters) get(key string, maxConns, requestsPerMinute int) *limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.byKey[key]; ok {
		return lim
	}
	lim := &limiter{sem: semaphore.NewWeighted(int64(maxConns))}
	if requestsPerMinute > 0 {
		lim.pace = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	l.byKey[key] = lim
	debug.Log(debug.Engine, "limiter created", "connection_key", key,
		"max_connections", maxConns, "requests_per_minute", requestsPerMinute)
	return lim
}

// acquire waits for pacing and a connection slot. The returned release
// function must be called once the attempt finishes.
func (lim *limiter) acquire(ctx context.Context, providerName string) (func(), error) {
	if lim.pace != nil {
		start := time.Now()
		if err := lim.pace.Wait(ctx); err != nil {
			return nil, err
		}
		if waited := time.Since(start); waited > time.Millisecond {
			observability.RecordRateLimitWait(providerName, waited)
		}
	}
	if err := lim.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { lim.sem.Release(1) }, nil
}
