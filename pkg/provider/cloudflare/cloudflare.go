package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/chatapi"
	"github.com/rhuss/modelapi/pkg/provider/hooks"
)

const (
	// Name is the backend identifier.
	Name = "cloudflare"

	EnvAPIToken  = "CLOUDFLARE_API_TOKEN"
	EnvAccountID = "CLOUDFLARE_ACCOUNT_ID"
	EnvBaseURL   = "CLOUDFLARE_BASE_URL"

	// DefaultBaseURL is the Workers AI accounts endpoint.
	DefaultBaseURL = "https://api.cloudflare.com/client/v4/accounts"

	// NativeMaxTokens is the Workers AI default output cap.
	NativeMaxTokens = 256
)

// Workers AI error codes that indicate a temporary condition.
var transientCodes = map[int]bool{
	3036: true, // account rate limited
	3040: true, // out of capacity
	3043: true, // internal error
}

var transientPhrases = []string{"rate limit", "rate-limit", "capacity", "overload", "too many requests", "temporarily"}

// Provider implements provider.Provider for Cloudflare Workers AI.
type Provider struct {
	model     string
	baseURL   string
	apiKey    string
	accountID string
	args      map[string]any

	client  *http.Client
	hooks   *hooks.Hooks
	handler chatapi.Handler
	closed  atomic.Bool
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// New creates a Cloudflare provider. The account id and API token are
// resolved from opts.Credentials when not set; a missing value fails with
// *api.ConfigurationError naming the variable.
func New(opts provider.Options) (*Provider, error) {
	if opts.Model == "" {
		return nil, &api.ConfigurationError{Backend: Name, Message: "model is required"}
	}
	accountID, err := opts.Require(Name, opts.AccountID, EnvAccountID)
	if err != nil {
		return nil, err
	}
	apiKey, err := opts.Require(Name, opts.APIKey, EnvAPIToken)
	if err != nil {
		return nil, err
	}
	baseURL := opts.Resolve(opts.BaseURL, EnvBaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	h := hooks.New()
	client := h.Client(opts.HTTPClient)
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}

	return &Provider{
		model:     opts.Model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		accountID: accountID,
		args:      opts.CloneArgs(),
		client:    client,
		hooks:     h,
		handler:   chatapi.SelectHandler(opts.Model, chatapi.DefaultRules),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return Name }

// Model returns the Workers AI model name.
func (p *Provider) Model() string { return p.model }

// Capabilities returns what this provider supports. Tool calls are only
// available for models with a prompt-based tool handler.
func (p *Provider) Capabilities() provider.Capabilities {
	emulated := p.handler.Name() != "generic"
	return provider.Capabilities{
		ToolCalling:      emulated,
		ForcedToolChoice: emulated,
		Usage:            true,
	}
}

// Generate sends one run request.
func (p *Provider) Generate(ctx context.Context, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (*api.ModelOutput, *api.ModelCall, error) {
	if p.closed.Load() {
		return nil, nil, api.ErrProviderClosed
	}

	reqBody, err := p.encodeRequest(messages, tools, toolChoice, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("cloudflare: encoding request: %w", err)
	}

	id := p.hooks.StartRequest()
	// Releases the timing entry on every error path; a no-op once the
	// elapsed time has been taken below.
	defer p.hooks.EndRequest(id)

	url := p.chatURL()
	debug.Log(debug.Providers, "cloudflare request", "model", p.model, "url", url, "handler", p.handler.Name())

	resp, err := chatapi.PostJSON(ctx, p.client, url, map[string]string{
		"Authorization":       "Bearer " + p.apiKey,
		hooks.RequestIDHeader: id,
	}, reqBody)
	if err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) {
			statusErr.Call = api.NewModelCall(reqBody, []byte(statusErr.Body), p.hooks.EndRequest(id))
		}
		return nil, nil, err
	}
	call := api.NewModelCall(reqBody, resp.Body, p.hooks.EndRequest(id))

	var envelope runResponse
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, nil, &api.ProtocolError{Message: "decoding response", Body: debug.Truncate(string(resp.Body), 512), Err: err, Call: call}
	}
	if !envelope.Success {
		return nil, nil, p.backendError(envelope.Errors, call)
	}
	if envelope.Result == nil {
		return nil, nil, &api.ProtocolError{Message: "response has no result", Body: debug.Truncate(string(resp.Body), 512), Call: call}
	}

	msg, err := p.decodeResult(envelope.Result, tools)
	if err != nil {
		return nil, nil, &api.ProtocolError{Message: err.Error(), Body: debug.Truncate(string(resp.Body), 512), Call: call}
	}

	stop := api.StopReasonStop
	if len(msg.ToolCalls) > 0 {
		stop = api.StopReasonToolCalls
	}
	output := &api.ModelOutput{
		Model:   p.model,
		Choices: []api.ChatCompletionChoice{{Message: msg, StopReason: stop}},
	}
	if u := envelope.Result.Usage; u != nil {
		output.Usage = &api.ModelUsage{
			InputTokens:  u.PromptTokens,
			OutputTokens: u.CompletionTokens,
			TotalTokens:  u.TotalTokens,
		}
	}
	return output, call, nil
}

// ShouldRetry reports whether err is transient.
func (p *Provider) ShouldRetry(err error) bool {
	return provider.ShouldRetryChatAPIError(err)
}

// ConnectionKey groups calls by account and model, the granularity at
// which Workers AI enforces rate limits.
func (p *Provider) ConnectionKey() string {
	return p.accountID + p.model
}

// MaxTokens overrides the Workers AI default of NativeMaxTokens.
func (p *Provider) MaxTokens() int {
	return provider.DefaultMaxTokens
}

// Close releases idle connections. Generate fails with
// api.ErrProviderClosed afterwards.
func (p *Provider) Close() error {
	p.closed.Store(true)
	p.client.CloseIdleConnections()
	return nil
}

func (p *Provider) chatURL() string {
	return fmt.Sprintf("%s/%s/ai/run/@cf/%s", p.baseURL, p.accountID, p.model)
}

// encodeRequest merges Args, generation options and the encoded messages.
// Explicit options override Args with the same key.
func (p *Provider) encodeRequest(messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) ([]byte, error) {
	body := make(map[string]any, len(p.args)+8)
	for k, v := range p.args {
		body[k] = v
	}
	if cfg.MaxTokens != nil {
		body["max_tokens"] = *cfg.MaxTokens
	}
	if cfg.Temperature != nil {
		body["temperature"] = *cfg.Temperature
	}
	if cfg.TopP != nil {
		body["top_p"] = *cfg.TopP
	}
	if cfg.TopK != nil {
		body["top_k"] = *cfg.TopK
	}
	if cfg.Seed != nil {
		body["seed"] = *cfg.Seed
	}
	if cfg.FrequencyPenalty != nil {
		body["frequency_penalty"] = *cfg.FrequencyPenalty
	}
	if cfg.PresencePenalty != nil {
		body["presence_penalty"] = *cfg.PresencePenalty
	}
	body["messages"] = chatapi.Input(messages, tools, toolChoice, p.handler)
	return json.Marshal(body)
}

func (p *Provider) decodeResult(result *runResult, tools []api.ToolInfo) (api.ChatMessage, error) {
	var content string
	switch {
	case len(result.Response) == 0 || string(result.Response) == "null":
		if len(result.ToolCalls) == 0 {
			return api.ChatMessage{}, errors.New("response has no result.response")
		}
	case result.Response[0] == '"':
		if err := json.Unmarshal(result.Response, &content); err != nil {
			return api.ChatMessage{}, fmt.Errorf("decoding result.response: %w", err)
		}
	default:
		// Structured output models return JSON values as the response.
		content = string(result.Response)
	}

	msg := p.handler.ParseAssistantResponse(content, tools)
	for _, tc := range result.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, chatapi.ParseToolCall("", tc.Name, string(tc.Arguments), tools))
	}
	return msg, nil
}

func (p *Provider) backendError(raw json.RawMessage, call *api.ModelCall) *api.BackendError {
	payload := strings.TrimSpace(string(raw))
	if payload == "" || payload == "null" {
		payload = "Unknown"
	}
	return &api.BackendError{
		Model:     p.model,
		Payload:   payload,
		Transient: isTransient(raw),
		Call:      call,
	}
}

// isTransient inspects envelope errors for rate limiting or capacity
// problems.
func isTransient(raw json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return containsTransientPhrase(string(raw))
	}
	for _, item := range items {
		var obj runError
		if err := json.Unmarshal(item, &obj); err == nil {
			if transientCodes[obj.Code] || containsTransientPhrase(obj.Message) {
				return true
			}
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil && containsTransientPhrase(s) {
			return true
		}
	}
	return false
}

func containsTransientPhrase(s string) bool {
	s = strings.ToLower(s)
	for _, phrase := range transientPhrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}

// Factory adapts New to provider.Factory.
func Factory(opts provider.Options) (provider.Provider, error) {
	return New(opts)
}
