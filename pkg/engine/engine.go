package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/observability"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/storage"
)

// Model drives a provider on behalf of callers. It is safe for concurrent
// use.
type Model struct {
	provider provider.Provider
	store    storage.CallStore
	cfg      Config
	limiter  *limiter
}

// New creates a Model. The provider must not be nil. The store can be nil
// when no audit log is wanted.
func New(p provider.Provider, store storage.CallStore, cfg Config) (*Model, error) {
	if p == nil {
		return nil, fmt.Errorf("engine: provider must not be nil")
	}
	limiters := cfg.Limiters
	if limiters == nil {
		limiters = defaultLimiters
	}
	return &Model{
		provider: p,
		store:    store,
		cfg:      cfg,
		limiter:  limiters.get(p.ConnectionKey(), cfg.maxConnections(), cfg.RequestsPerMinute),
	}, nil
}

// Provider returns the wrapped provider.
func (m *Model) Provider() provider.Provider { return m.provider }

// Close closes the wrapped provider.
func (m *Model) Close() error { return m.provider.Close() }

// Generate validates the request, applies the provider's token-limit
// default, and calls the provider, retrying retryable failures with
// exponential backoff. Each attempt is a separate backend round trip with
// its own ModelCall; the returned ModelCall belongs to the successful
// attempt.
func (m *Model) Generate(ctx context.Context, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (*api.ModelOutput, *api.ModelCall, error) {

	if apiErr := api.ValidateGenerate(messages, tools, toolChoice, cfg, m.cfg.validation()); apiErr != nil {
		return nil, nil, apiErr
	}
	caps := m.provider.Capabilities()
	if supported, choice := provider.SupportedTools(caps, tools, toolChoice); len(supported) < len(tools) {
		debug.Log(debug.Engine, "provider has no tool calling, dropping tools",
			"provider", m.provider.Name(), "model", m.provider.Model(), "tools", len(tools))
		tools, toolChoice = supported, choice
	}
	if apiErr := provider.ValidateCapabilities(caps, tools, toolChoice); apiErr != nil {
		return nil, nil, apiErr
	}

	if cfg.MaxTokens == nil {
		if n := m.provider.MaxTokens(); n > 0 {
			cfg.MaxTokens = api.Int(n)
		}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = m.cfg.initialBackoff()
	exp.MaxInterval = m.cfg.maxBackoff()
	exp.MaxElapsedTime = 0
	hinted := &retryAfterBackOff{BackOff: exp}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(m.cfg.maxRetries())), ctx)

	var (
		out     *api.ModelOutput
		call    *api.ModelCall
		attempt int
	)
	operation := func() error {
		attempt++
		o, c, err := m.attempt(ctx, messages, tools, toolChoice, cfg)
		if err == nil {
			out, call = o, c
			return nil
		}
		if ctx.Err() != nil || !m.provider.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		hinted.hint = retryAfter(err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("retrying generate",
			"provider", m.provider.Name(),
			"model", m.provider.Model(),
			"attempt", attempt,
			"wait", wait,
			"error", err.Error(),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, nil, err
	}
	return out, call, nil
}

// attempt performs one limited, measured provider call.
func (m *Model) attempt(ctx context.Context, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (*api.ModelOutput, *api.ModelCall, error) {

	name, model, key := m.provider.Name(), m.provider.Model(), m.provider.ConnectionKey()

	release, err := m.limiter.acquire(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	inFlight := observability.ProviderInFlight.WithLabelValues(key)
	inFlight.Inc()
	defer inFlight.Dec()

	attemptCtx := ctx
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	debug.Log(debug.Engine, "generate attempt", "provider", name, "model", model, "messages", len(messages), "tools", len(tools))
	out, call, err := m.provider.Generate(attemptCtx, messages, tools, toolChoice, cfg)
	if err != nil {
		status := observability.StatusError
		if ctx.Err() == nil && m.provider.ShouldRetry(err) {
			status = observability.StatusRetry
		}
		failed := api.FailedCall(err)
		observability.RecordAttempt(name, model, status, failed, nil)
		m.save(ctx, &storage.CallRecord{
			Call:          failed,
			Provider:      name,
			Model:         model,
			ConnectionKey: key,
			Status:        storage.StatusError,
			Error:         err.Error(),
		})
		return nil, nil, err
	}

	observability.RecordAttempt(name, model, observability.StatusOK, call, out.Usage)
	m.save(ctx, &storage.CallRecord{
		Call:          call,
		Provider:      name,
		Model:         model,
		ConnectionKey: key,
		Status:        storage.StatusOK,
		Usage:         out.Usage,
	})
	return out, call, nil
}

// save writes rec to the audit log. Records without a ModelCall (failures
// before any request body existed) are skipped. Storage failures are
// logged and never fail the generate call.
func (m *Model) save(ctx context.Context, rec *storage.CallRecord) {
	if m.store == nil || rec.Call == nil {
		return
	}
	if err := m.store.SaveCall(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("failed to save model call", "call_id", rec.ID(), "error", err.Error())
	}
}

// retryAfterBackOff stretches the next backoff interval to a server
// Retry-After hint when the hint is longer.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func retryAfter(err error) time.Duration {
	var se *api.StatusError
	if !errors.As(err, &se) || se.RetryAfter <= 0 {
		return 0
	}
	return min(se.RetryAfter, maxRetryAfter)
}
