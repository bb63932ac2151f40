package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/chatapi"
	"github.com/rhuss/modelapi/pkg/provider/hooks"
)

const (
	// Name is the backend identifier.
	Name = "anthropic"

	EnvAPIKey  = "ANTHROPIC_API_KEY"
	EnvBaseURL = "ANTHROPIC_BASE_URL"

	DefaultBaseURL = "https://api.anthropic.com/"
)

// Provider implements provider.Provider for the Anthropic Messages API.
type Provider struct {
	model   string
	baseURL string
	args    map[string]any

	client     sdk.Client
	httpClient *http.Client
	hooks      *hooks.Hooks
	closed     atomic.Bool
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// New creates an Anthropic provider. The API key is required.
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

	return &Provider{
		model:      opts.Model,
		baseURL:    baseURL,
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
		MaxContextWindow:  200000,
	}
}

// Generate sends one Messages API request.
func (p *Provider) Generate(ctx context.Context, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (*api.ModelOutput, *api.ModelCall, error) {
	if p.closed.Load() {
		return nil, nil, api.ErrProviderClosed
	}

	params, err := buildParams(p.model, messages, tools, toolChoice, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("anthropic: building request: %w", err)
	}
	reqBody, extra, err := auditBody(params, p.args)
	if err != nil {
		return nil, nil, fmt.Errorf("anthropic: encoding request: %w", err)
	}

	id := p.hooks.StartRequest()
	defer p.hooks.EndRequest(id)

	reqOpts := []option.RequestOption{option.WithHeader(hooks.RequestIDHeader, id)}
	for k, v := range extra {
		reqOpts = append(reqOpts, option.WithJSONSet(k, v))
	}

	debug.Log(debug.Providers, "anthropic request", "model", p.model, "messages", len(params.Messages))
	msg, err := p.client.Messages.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, nil, p.mapError(err, reqBody, p.hooks.EndRequest(id))
	}
	call := api.NewModelCall(reqBody, []byte(msg.RawJSON()), p.hooks.EndRequest(id))

	out := translateResponse(msg, tools)
	if out.Model == "" {
		out.Model = p.model
	}
	return out, call, nil
}

// ListModels returns the models available to the API key.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	page, err := p.client.Models.List(ctx, sdk.ModelListParams{})
	if err != nil {
		return nil, p.mapError(err, nil, 0)
	}
	models := make([]provider.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, provider.ModelInfo{ID: m.ID, Object: "model", OwnedBy: Name})
	}
	return models, nil
}

// ShouldRetry reports whether err is transient. Anthropic signals
// overload with status 529, which the 5xx rule covers.
func (p *Provider) ShouldRetry(err error) bool {
	return provider.ShouldRetryChatAPIError(err)
}

// ConnectionKey groups calls per endpoint and model.
func (p *Provider) ConnectionKey() string {
	return p.baseURL + p.model
}

// MaxTokens returns the output cap used when the caller sets none; the
// Messages API requires an explicit max_tokens.
func (p *Provider) MaxTokens() int { return provider.DefaultMaxTokens }

// Close releases idle connections.
func (p *Provider) Close() error {
	p.closed.Store(true)
	p.httpClient.CloseIdleConnections()
	return nil
}

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
		debug.Log(debug.Providers, "anthropic error", "status", se.StatusCode)
		return se
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &api.TransportError{Op: http.MethodPost, URL: p.baseURL + "v1/messages", Err: err}
}
