package engine

import (
	"time"

	"github.com/rhuss/modelapi/pkg/api"
)

// Defaults applied by Config when a field is zero.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultMaxConnections = 10
	DefaultMaxToolTurns   = 10

	// maxRetryAfter caps a server-provided Retry-After hint.
	maxRetryAfter = 2 * time.Minute
)

// Config holds configuration for a Model.
type Config struct {
	// MaxRetries is the number of retries after the first attempt. Zero
	// means DefaultMaxRetries; a negative value disables retries.
	MaxRetries int

	// InitialBackoff and MaxBackoff bound the exponential backoff between
	// attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Timeout bounds a single attempt. Zero means no per-attempt timeout.
	Timeout time.Duration

	// MaxConnections is the number of concurrent generate calls allowed
	// per connection key.
	MaxConnections int

	// RequestsPerMinute paces attempts per connection key. Zero means
	// unlimited.
	RequestsPerMinute int

	// Validation limits applied before any network activity. A zero value
	// uses api.DefaultValidationConfig.
	Validation api.ValidationConfig

	// Limiters shares concurrency and pacing state between Models. Nil
	// uses a process-wide registry.
	Limiters *Limiters

	// MaxToolTurns is the maximum number of model turns Run takes before
	// returning an incomplete result. Zero or negative means
	// DefaultMaxToolTurns.
	MaxToolTurns int

	// ParallelToolCalls executes the tool calls of one turn concurrently.
	ParallelToolCalls bool

	// AllowedTools restricts which tools Run executes. Empty allows all.
	AllowedTools []string
}

func (c Config) maxRetries() int {
	switch {
	case c.MaxRetries < 0:
		return 0
	case c.MaxRetries == 0:
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

func (c Config) initialBackoff() time.Duration {
	if c.InitialBackoff <= 0 {
		return DefaultInitialBackoff
	}
	return c.InitialBackoff
}

func (c Config) maxBackoff() time.Duration {
	if c.MaxBackoff <= 0 {
		return DefaultMaxBackoff
	}
	return c.MaxBackoff
}

func (c Config) maxConnections() int {
	if c.MaxConnections <= 0 {
		return DefaultMaxConnections
	}
	return c.MaxConnections
}

// maxTurns returns the effective max turns value, defaulting to 10.
func (c Config) maxTurns() int {
	if c.MaxToolTurns <= 0 {
		return DefaultMaxToolTurns
	}
	return c.MaxToolTurns
}

func (c Config) validation() api.ValidationConfig {
	if c.Validation == (api.ValidationConfig{}) {
		return api.DefaultValidationConfig()
	}
	return c.Validation
}
