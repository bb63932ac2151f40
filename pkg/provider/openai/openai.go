package openai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/chatapi"
	"github.com/rhuss/modelapi/pkg/provider/hooks"
	"github.com/rhuss/modelapi/pkg/provider/openaicompat"
)

const (
	// Name is the backend identifier.
	Name = "openai"

	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_BASE_URL"

	DefaultBaseURL = "https://api.openai.com/v1/"
)

// Provider implements provider.Provider for the OpenAI API.
type Provider struct {
	model   string
	baseURL string
	keyHash string
	args    map[string]any

	client     sdk.Client
	httpClient *http.Client
	hooks      *hooks.Hooks
	closed     atomic.Bool
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// New creates an OpenAI provider. The API key is required.
func New(opts provider.Options) (*Provider, error) {
	if opts.Model == "" {
		return nil, &api.ConfigurationError{Backend: Name, Message: "model is required"}
	}
	apiKey, err := opts.Require(Name, opts.APIKey, EnvAPIKey)
	if err != nil {
		return nil, err
	}
	baseURL := opts.Resolve(opts.BaseURL, EnvBaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	h := hooks.New()
	httpClient := h.Client(opts.HTTPClient)
	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	}

	sum := sha256.Sum256([]byte(apiKey))
	return &Provider{
		model:      opts.Model,
		baseURL:    baseURL,
		keyHash:    hex.EncodeToString(sum[:6]),
		args:       opts.CloneArgs(),
		httpClient: httpClient,
		hooks:      h,
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(baseURL),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return Name }

// Model returns the model name.
func (p *Provider) Model() string { return p.model }

// Capabilities returns what this provider supports.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		ToolCalling:       true,
		NativeToolCalling: true,
		ForcedToolChoice:  true,
		Usage:             true,
	}
}

// Generate sends one chat completion request.
func (p *Provider) Generate(ctx context.Context, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (*api.ModelOutput, *api.ModelCall, error) {
	if p.closed.Load() {
		return nil, nil, api.ErrProviderClosed
	}

	params, err := buildParams(p.model, messages, tools, toolChoice, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("openai: building request: %w", err)
	}
	reqBody, extra, err := auditBody(params, p.args)
	if err != nil {
		return nil, nil, fmt.Errorf("openai: encoding request: %w", err)
	}

	id := p.hooks.StartRequest()
	defer p.hooks.EndRequest(id)

	reqOpts := []option.RequestOption{option.WithHeader(hooks.RequestIDHeader, id)}
	for k, v := range extra {
		reqOpts = append(reqOpts, option.WithJSONSet(k, v))
	}

	debug.Log(debug.Providers, "openai request", "model", p.model, "base_url", p.baseURL)
	resp, err := p.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, nil, p.mapError(err, reqBody, p.hooks.EndRequest(id))
	}
	call := api.NewModelCall(reqBody, []byte(resp.RawJSON()), p.hooks.EndRequest(id))

	out, err := translateResponse(resp, tools)
	if err != nil {
		return nil, nil, &api.ProtocolError{Message: err.Error(), Body: debug.Truncate(resp.RawJSON(), 512), Call: call}
	}
	if out.Model == "" {
		out.Model = p.model
	}
	return out, call, nil
}

// ListModels returns the models visible to the API key.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, p.mapError(err, nil, 0)
	}
	models := make([]provider.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, provider.ModelInfo{ID: m.ID, Object: string(m.Object), OwnedBy: m.OwnedBy})
	}
	return models, nil
}

// ShouldRetry reports whether err is transient.
func (p *Provider) ShouldRetry(err error) bool {
	return provider.ShouldRetryChatAPIError(err)
}

// ConnectionKey groups calls by API key and endpoint; OpenAI enforces
// rate limits per key. Only a fingerprint of the key is used.
func (p *Provider) ConnectionKey() string {
	return p.baseURL + "#" + p.keyHash
}

// MaxTokens returns 0: the API default applies.
func (p *Provider) MaxTokens() int { return 0 }

// Close releases idle connections.
func (p *Provider) Close() error {
	p.closed.Store(true)
	p.httpClient.CloseIdleConnections()
	return nil
}

// mapError converts SDK errors to the shared error taxonomy.
func (p *Provider) mapError(err error, reqBody []byte, elapsed time.Duration) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		se := &api.StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.RawJSON()}
		if apiErr.Response != nil {
			se.RetryAfter = chatapi.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		if reqBody != nil {
			se.Call = api.NewModelCall(reqBody, []byte(se.Body), elapsed)
		}
		debug.Log(debug.Providers, "openai error", "status", se.StatusCode, "message", openaicompat.BackendMessage(se))
		return se
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var jsonErr *json.SyntaxError
	if errors.As(err, &jsonErr) {
		return &api.ProtocolError{Message: "decoding response", Err: err}
	}
	return &api.TransportError{Op: http.MethodPost, URL: p.baseURL + "chat/completions", Err: err}
}
