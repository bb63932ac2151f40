package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/engine"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/cloudflare"
	"github.com/rhuss/modelapi/pkg/provider/vllm"
	"github.com/rhuss/modelapi/pkg/storage"
	"github.com/rhuss/modelapi/pkg/storage/memory"
	"github.com/rhuss/modelapi/pkg/tools"
	"github.com/rhuss/modelapi/pkg/tools/mcp"
)

func startMock(t *testing.T) *httptest.Server {
	t.Helper()
	return startMockWith(t, serverConfig{})
}

func startMockWith(t *testing.T, sc serverConfig) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newHandler(newBackend(), sc))
	t.Cleanup(srv.Close)
	return srv
}

func userMessage(text string) []api.ChatMessage {
	return []api.ChatMessage{{Role: api.RoleUser, Content: text}}
}

func newCloudflare(t *testing.T, srv *httptest.Server) provider.Provider {
	t.Helper()
	p, err := cloudflare.New(provider.Options{
		Model:     "mistral/mistral-7b-instruct-v0.1",
		BaseURL:   srv.URL + "/client/v4/accounts",
		AccountID: "acct-test",
		APIKey:    "token",
	})
	if err != nil {
		t.Fatalf("cloudflare.New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func newVLLM(t *testing.T, srv *httptest.Server) provider.Provider {
	t.Helper()
	p, err := vllm.New(vllm.Config{Model: "mock-model", BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("vllm.New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func fastEngine() engine.Config {
	return engine.Config{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Limiters:       engine.NewLimiters(),
	}
}

func TestCloudflareRun(t *testing.T) {
	srv := startMock(t)
	p := newCloudflare(t, srv)

	out, call, err := p.Generate(context.Background(), userMessage("count from 1 to 5"), nil, api.ToolChoiceAuto, api.GenerateConfig{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Completion() != "1, 2, 3, 4, 5" {
		t.Errorf("Completion() = %q", out.Completion())
	}
	if out.Usage == nil || out.Usage.TotalTokens != 15 {
		t.Errorf("Usage = %+v", out.Usage)
	}
	if call == nil || !strings.Contains(string(call.Request()), "count from 1 to 5") {
		t.Errorf("ModelCall request not recorded: %v", call)
	}
}

func TestCloudflareRun_Failures(t *testing.T) {
	srv := startMock(t)
	p := newCloudflare(t, srv)
	ctx := context.Background()

	_, _, err := p.Generate(ctx, userMessage("fail:rate"), nil, api.ToolChoiceAuto, api.GenerateConfig{})
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("fail:rate error = %v", err)
	}
	if statusErr.RetryAfter != time.Second || !p.ShouldRetry(err) {
		t.Errorf("RetryAfter = %v, ShouldRetry = %v", statusErr.RetryAfter, p.ShouldRetry(err))
	}

	_, _, err = p.Generate(ctx, userMessage("fail:400"), nil, api.ToolChoiceAuto, api.GenerateConfig{})
	if p.ShouldRetry(err) {
		t.Errorf("400 must not be retried: %v", err)
	}

	_, _, err = p.Generate(ctx, userMessage("fail:envelope"), nil, api.ToolChoiceAuto, api.GenerateConfig{})
	var backendErr *api.BackendError
	if !errors.As(err, &backendErr) || !strings.Contains(backendErr.Payload, "Capacity") {
		t.Errorf("fail:envelope error = %v", err)
	}
}

func TestEngineRetriesFlakyBackend(t *testing.T) {
	srv := startMock(t)
	store := memory.New(10)
	m, err := engine.New(newVLLM(t, srv), store, fastEngine())
	if err != nil {
		t.Fatal(err)
	}

	out, _, err := m.Generate(context.Background(), userMessage("flaky: hello"), nil, api.ToolChoiceAuto, api.GenerateConfig{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Completion() != "Recovered after retry." {
		t.Errorf("Completion() = %q", out.Completion())
	}

	recs, err := store.ListCalls(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("stored %d calls, want 2 (one failed, one ok)", len(recs))
	}
	statuses := map[string]bool{recs[0].Status: true, recs[1].Status: true}
	if !statuses[storage.StatusOK] || !statuses[storage.StatusError] {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestToolLoopAgainstMockMCP(t *testing.T) {
	srv := startMock(t)
	ctx := context.Background()

	exec, err := mcp.Connect(ctx, mcp.Config{Servers: []mcp.ServerConfig{{Name: "mock", URL: srv.URL + "/mcp"}}})
	if err != nil {
		t.Fatalf("mcp.Connect: %v", err)
	}
	defer exec.Close()

	m, err := engine.New(newVLLM(t, srv), nil, fastEngine())
	if err != nil {
		t.Fatal(err)
	}

	result, err := m.Run(ctx, userMessage("ping"), []tools.ToolExecutor{exec},
		api.ToolChoiceForced("echo"), api.GenerateConfig{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Turns != 2 || result.Incomplete {
		t.Errorf("Turns = %d, Incomplete = %v", result.Turns, result.Incomplete)
	}
	if got := result.Output.Completion(); got != "The tool returned: Echo: ping" {
		t.Errorf("final completion = %q", got)
	}
}

func TestPerKeyRateLimit(t *testing.T) {
	srv := startMockWith(t, serverConfig{apiKeys: []string{"k1", "k2"}, rpm: 1})
	ctx := context.Background()

	newKeyed := func(key string) provider.Provider {
		p, err := vllm.New(vllm.Config{Model: "mock-model", BaseURL: srv.URL, APIKey: key, Timeout: 5 * time.Second})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { p.Close() })
		return p
	}
	k1 := newKeyed("k1")

	if _, _, err := k1.Generate(ctx, userMessage("hi"), nil, api.ToolChoiceAuto, api.GenerateConfig{}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, _, err := k1.Generate(ctx, userMessage("hi"), nil, api.ToolChoiceAuto, api.GenerateConfig{})
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request error = %v, want 429", err)
	}
	if statusErr.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want the limiter's refill delay", statusErr.RetryAfter)
	}

	if _, _, err := newKeyed("k2").Generate(ctx, userMessage("hi"), nil, api.ToolChoiceAuto, api.GenerateConfig{}); err != nil {
		t.Errorf("k2 has a separate budget: %v", err)
	}

	_, _, err = newKeyed("wrong").Generate(ctx, userMessage("hi"), nil, api.ToolChoiceAuto, api.GenerateConfig{})
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized || k1.ShouldRetry(err) {
		t.Errorf("wrong key error = %v, want non-retryable 401", err)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv := startMock(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID response header")
	}
}
