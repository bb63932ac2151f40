package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/hooks"
)

const testModel = "meta/llama-3.1-8b-instruct"

// capturedRequest records what the fake Workers AI endpoint received.
type capturedRequest struct {
	Path      string
	Auth      string
	RequestID string
	Body      map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Auth = r.Header.Get("Authorization")
		captured.RequestID = r.Header.Get(hooks.RequestIDHeader)
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestProvider(t *testing.T, baseURL, model string, args map[string]any) *Provider {
	t.Helper()
	p, err := New(provider.Options{
		Model:   model,
		BaseURL: baseURL,
		Args:    args,
		Credentials: provider.MapCredentials{
			EnvAPIToken:  "test-token",
			EnvAccountID: "acct-123",
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestNew_Credentials(t *testing.T) {
	tests := []struct {
		name        string
		opts        provider.Options
		wantMissing string
	}{
		{
			name: "from credentials",
			opts: provider.Options{Model: "m", Credentials: provider.MapCredentials{
				EnvAPIToken: "tok", EnvAccountID: "acct",
			}},
		},
		{
			name: "explicit values",
			opts: provider.Options{Model: "m", APIKey: "tok", AccountID: "acct", Credentials: provider.MapCredentials{}},
		},
		{
			name: "missing account id",
			opts: provider.Options{Model: "m", Credentials: provider.MapCredentials{
				EnvAPIToken: "tok",
			}},
			wantMissing: EnvAccountID,
		},
		{
			name: "missing api token",
			opts: provider.Options{Model: "m", Credentials: provider.MapCredentials{
				EnvAccountID: "acct",
			}},
			wantMissing: EnvAPIToken,
		},
		{
			name:        "explicit key but missing account",
			opts:        provider.Options{Model: "m", APIKey: "tok", Credentials: provider.MapCredentials{}},
			wantMissing: EnvAccountID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.opts)
			if tt.wantMissing == "" {
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				p.Close()
				return
			}
			var cfgErr *api.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("New() error = %v, want ConfigurationError", err)
			}
			if cfgErr.Variable != tt.wantMissing {
				t.Errorf("Variable = %q, want %q", cfgErr.Variable, tt.wantMissing)
			}
			if !strings.Contains(err.Error(), tt.wantMissing) || !strings.Contains(err.Error(), Name) {
				t.Errorf("error %q should name backend and variable", err)
			}
		})
	}
}

func TestNew_BaseURLFromCredentials(t *testing.T) {
	p, err := New(provider.Options{Model: "m", Credentials: provider.MapCredentials{
		EnvAPIToken: "tok", EnvAccountID: "acct", EnvBaseURL: "http://gateway.local/v4/",
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	if got := p.chatURL(); got != "http://gateway.local/v4/acct/ai/run/@cf/m" {
		t.Errorf("chatURL() = %q", got)
	}

	p2, err := New(provider.Options{Model: "m", APIKey: "k", AccountID: "a", Credentials: provider.MapCredentials{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p2.Close()
	if !strings.HasPrefix(p2.chatURL(), DefaultBaseURL) {
		t.Errorf("chatURL() = %q, want default base", p2.chatURL())
	}
}

func TestCloudflareProvider_Generate_TextResponse(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"success":true,"result":{"response":"42"},"errors":[],"messages":[]}`)
	p := newTestProvider(t, srv.URL, testModel, nil)

	out, call, err := p.Generate(context.Background(),
		[]api.ChatMessage{api.UserMessage("What is 6*7?")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(out.Choices) != 1 {
		t.Fatalf("got %d choices, want 1", len(out.Choices))
	}
	if got := out.Completion(); got != "42" {
		t.Errorf("Completion() = %q, want 42", got)
	}
	if out.StopReason() != api.StopReasonStop {
		t.Errorf("StopReason() = %q, want stop", out.StopReason())
	}
	if out.Model != testModel {
		t.Errorf("Model = %q", out.Model)
	}
	if call == nil {
		t.Fatal("ModelCall is nil")
	}
	if call.Time() < 0 {
		t.Errorf("call.Time() = %v, want >= 0", call.Time())
	}

	if captured.Path != "/acct-123/ai/run/@cf/"+testModel {
		t.Errorf("path = %q", captured.Path)
	}
	if captured.Auth != "Bearer test-token" {
		t.Errorf("Authorization = %q", captured.Auth)
	}
	if captured.RequestID == "" {
		t.Error("request carried no correlation id")
	}

	var sent map[string]any
	if err := json.Unmarshal(call.Request(), &sent); err != nil {
		t.Fatalf("call.Request() not JSON: %v", err)
	}
	if _, ok := sent["messages"]; !ok {
		t.Errorf("recorded request missing messages: %s", call.Request())
	}
	if !strings.Contains(string(call.Response()), `"42"`) {
		t.Errorf("recorded response = %s", call.Response())
	}
}

func TestCloudflareProvider_Generate_RequestBody(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"success":true,"result":{"response":"ok"}}`)
	p := newTestProvider(t, srv.URL, "mistral/mistral-7b-instruct-v0.1", map[string]any{
		"max_tokens": 10,
		"raw":        true,
	})

	_, _, err := p.Generate(context.Background(),
		[]api.ChatMessage{api.SystemMessage("be brief"), api.UserMessage("hi")}, nil, api.ToolChoiceAuto,
		api.GenerateConfig{MaxTokens: api.Int(512), Temperature: api.Float(0.3)})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got := captured.Body["max_tokens"]; got != 512.0 {
		t.Errorf("max_tokens = %v, want config value 512 to override args", got)
	}
	if got := captured.Body["raw"]; got != true {
		t.Errorf("raw = %v, want extra arg passed through", got)
	}
	if got := captured.Body["temperature"]; got != 0.3 {
		t.Errorf("temperature = %v", got)
	}
	msgs, _ := captured.Body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", captured.Body["messages"])
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be brief" {
		t.Errorf("messages[0] = %v", first)
	}
}

func TestCloudflareProvider_Generate_OmitsUnsetOptions(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"success":true,"result":{"response":"ok"}}`)
	p := newTestProvider(t, srv.URL, "m", nil)

	if _, _, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, key := range []string{"max_tokens", "temperature", "top_p"} {
		if _, ok := captured.Body[key]; ok {
			t.Errorf("body contains %q although it was not set", key)
		}
	}
}

func TestCloudflareProvider_Generate_BackendError(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		wantText      string
		wantTransient bool
	}{
		{"rate limited string", `{"success":false,"errors":["rate limited"]}`, "rate limited", true},
		{"capacity code", `{"success":false,"errors":[{"code":3040,"message":"Capacity temporarily exceeded"}]}`, "3040", true},
		{"invalid input", `{"success":false,"errors":[{"code":5006,"message":"Error: oneOf at '/' not met"}]}`, "5006", false},
		{"no errors field", `{"success":false}`, "Unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, http.StatusOK, tt.response)
			p := newTestProvider(t, srv.URL, testModel, nil)

			out, call, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
			if out != nil || call != nil {
				t.Errorf("got output %v / call %v on failure, want nil", out, call)
			}
			var be *api.BackendError
			if !errors.As(err, &be) {
				t.Fatalf("error = %v, want BackendError", err)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q does not contain %q", err, tt.wantText)
			}
			if !strings.HasPrefix(err.Error(), "Error calling "+testModel) {
				t.Errorf("error %q should start with the model", err)
			}
			if be.Transient != tt.wantTransient {
				t.Errorf("Transient = %v, want %v", be.Transient, tt.wantTransient)
			}
			if p.ShouldRetry(err) != tt.wantTransient {
				t.Errorf("ShouldRetry() = %v, want %v", p.ShouldRetry(err), tt.wantTransient)
			}
			if be.Call == nil || len(be.Call.Request()) == 0 {
				t.Error("BackendError should carry the attempted call")
			}
		})
	}
}

func TestCloudflareProvider_Generate_HTTPErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantRetry bool
	}{
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"rate limit", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, `{"success":false,"errors":[{"code":1000,"message":"nope"}]}`)
			p := newTestProvider(t, srv.URL, testModel, nil)

			_, _, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
			var se *api.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want StatusError", err)
			}
			if se.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", se.StatusCode, tt.status)
			}
			if !strings.Contains(se.Body, "nope") {
				t.Errorf("Body = %q, want backend payload", se.Body)
			}
			if got := p.ShouldRetry(err); got != tt.wantRetry {
				t.Errorf("ShouldRetry() = %v, want %v", got, tt.wantRetry)
			}
		})
	}
}

func TestCloudflareProvider_Generate_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"malformed json", `{"success":tru`},
		{"missing result", `{"success":true}`},
		{"missing response", `{"success":true,"result":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, http.StatusOK, tt.response)
			p := newTestProvider(t, srv.URL, testModel, nil)

			_, _, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
			var pe *api.ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want ProtocolError", err)
			}
			if p.ShouldRetry(err) {
				t.Error("protocol errors must not be retried")
			}
		})
	}
}

func TestCloudflareProvider_Generate_TransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := newTestProvider(t, url, testModel, nil)
	_, _, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
	var te *api.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if !p.ShouldRetry(err) {
		t.Error("connection refused should be retryable")
	}
}

func TestCloudflareProvider_Generate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := newTestProvider(t, srv.URL, testModel, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := p.Generate(ctx, []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !p.ShouldRetry(err) {
		t.Errorf("ShouldRetry(%v) = false, want true for timeout", err)
	}
	if n := p.hooks.Pending(); n != 0 {
		t.Errorf("hooks.Pending() = %d after timeout, want 0", n)
	}
}

func TestCloudflareProvider_Generate_ToolCalls(t *testing.T) {
	completion := `<function=get_weather>{"city": "Paris"}</function><|eom_id|>`
	resp, _ := json.Marshal(map[string]any{"success": true, "result": map[string]any{"response": completion}})
	srv, captured := newTestServer(t, http.StatusOK, string(resp))
	p := newTestProvider(t, srv.URL, testModel, nil)

	tools := []api.ToolInfo{{
		Name:        "get_weather",
		Description: "Weather lookup",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
	}}
	out, _, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("weather in Paris?")}, tools, api.ToolChoiceAuto, api.GenerateConfig{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	msgs := captured.Body["messages"].([]any)
	system := msgs[0].(map[string]any)
	if system["role"] != "system" || !strings.Contains(system["content"].(string), "get_weather") {
		t.Errorf("tool prompt not embedded: %v", system)
	}

	msg := out.Message()
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(msg.ToolCalls))
	}
	if msg.ToolCalls[0].Function != "get_weather" || msg.ToolCalls[0].Arguments["city"] != "Paris" {
		t.Errorf("tool call = %+v", msg.ToolCalls[0])
	}
	if out.StopReason() != api.StopReasonToolCalls {
		t.Errorf("StopReason() = %q, want tool_calls", out.StopReason())
	}
}

func TestCloudflareProvider_Generate_Usage(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"success":true,"result":{"response":"hi","usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}}`)
	p := newTestProvider(t, srv.URL, "m", nil)

	out, _, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Usage == nil || out.Usage.InputTokens != 5 || out.Usage.OutputTokens != 2 || out.Usage.TotalTokens != 7 {
		t.Errorf("Usage = %+v", out.Usage)
	}
}

func TestCloudflareProvider_ConnectionKey(t *testing.T) {
	mk := func(account, model string) string {
		p, err := New(provider.Options{Model: model, AccountID: account, APIKey: "k", Credentials: provider.MapCredentials{}})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer p.Close()
		return p.ConnectionKey()
	}

	base := mk("acct-a", "model-x")
	if again := mk("acct-a", "model-x"); again != base {
		t.Errorf("identical identity gave %q and %q", base, again)
	}
	if other := mk("acct-a", "model-y"); other == base {
		t.Error("different model gave the same key")
	}
	if other := mk("acct-b", "model-x"); other == base {
		t.Error("different account gave the same key")
	}
	if base != "acct-amodel-x" {
		t.Errorf("ConnectionKey() = %q, want account followed by model", base)
	}
}

func TestCloudflareProvider_MaxTokens(t *testing.T) {
	p := newTestProvider(t, "http://unused", "m", nil)
	if p.MaxTokens() <= NativeMaxTokens {
		t.Errorf("MaxTokens() = %d, want > %d", p.MaxTokens(), NativeMaxTokens)
	}
}

func TestCloudflareProvider_ShouldRetry(t *testing.T) {
	p := newTestProvider(t, "http://unused", "m", nil)
	timeout := &api.TransportError{Op: "POST", URL: "http://x", Err: context.DeadlineExceeded}
	if !p.ShouldRetry(timeout) {
		t.Error("connection timeout should be retryable")
	}
	if p.ShouldRetry(&api.StatusError{StatusCode: http.StatusBadRequest}) {
		t.Error("400 bad request should not be retryable")
	}
}

// Every StartRequest is matched by an EndRequest even when failures are
// injected mid-call.
func TestCloudflareProvider_HooksDoNotLeak(t *testing.T) {
	var mu sync.Mutex
	n := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n++
		i := n
		mu.Unlock()
		switch i % 4 {
		case 0:
			w.Write([]byte(`{"success":true,"result":{"response":"ok"}}`))
		case 1:
			w.Write([]byte(`{"success":false,"errors":["boom"]}`))
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, testModel, nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
		}()
	}
	wg.Wait()

	stats := p.hooks.Stats()
	if stats.Started != 40 || stats.Ended != 40 || stats.Pending != 0 {
		t.Errorf("hooks stats = %+v, want 40 started, 40 ended, 0 pending", stats)
	}
}

func TestCloudflareProvider_Close(t *testing.T) {
	p := newTestProvider(t, "http://unused", "m", nil)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, _, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{})
	if !errors.Is(err, api.ErrProviderClosed) {
		t.Errorf("Generate after Close error = %v, want ErrProviderClosed", err)
	}
}

type countingTransport struct {
	http.RoundTripper
	closes int
}

func (c *countingTransport) CloseIdleConnections() { c.closes++ }

func TestCloudflareProvider_CloseReleasesTransport(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{"success":true,"result":{"response":"hi"}}`)
	transport := &countingTransport{RoundTripper: http.DefaultTransport}
	p, err := New(provider.Options{
		Model:      "m",
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Transport: transport},
		Credentials: provider.MapCredentials{
			EnvAPIToken:  "test-token",
			EnvAccountID: "acct-123",
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := p.Generate(context.Background(), []api.ChatMessage{api.UserMessage("hi")}, nil, api.ToolChoiceAuto, api.GenerateConfig{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if transport.closes != 1 {
		t.Errorf("CloseIdleConnections reached the transport %d times, want 1", transport.closes)
	}
}

func TestCloudflareProvider_Capabilities(t *testing.T) {
	llama := newTestProvider(t, "http://unused", testModel, nil)
	if !llama.Capabilities().ToolCalling {
		t.Error("llama model should support emulated tool calling")
	}
	generic := newTestProvider(t, "http://unused", "qwen1.5-7b-chat-awq", nil)
	if generic.Capabilities().ToolCalling {
		t.Error("generic model should not advertise tool calling")
	}
}
