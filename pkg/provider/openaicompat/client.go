package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/chatapi"
	"github.com/rhuss/modelapi/pkg/provider/hooks"
)

// Client performs HTTP requests against an OpenAI-compatible Chat Completions
// backend. It uses the shared translate/response/errors code.
//
// The Client is safe for concurrent use. Each Client owns its correlation
// hooks registry.
type Client struct {
	httpClient *http.Client
	hooks      *hooks.Hooks
	baseURL    string
	apiKey     string

	// ModelMapper is an optional function that transforms the model name
	// before sending it to the backend. If nil, the model name is used as-is.
	ModelMapper func(string) string
}

// NewClient creates a new Client for an OpenAI-compatible backend. base may
// be nil; it is copied, never modified.
func NewClient(baseURL, apiKey string, timeout time.Duration, base *http.Client) *Client {
	// Normalize: remove trailing slash from base URL.
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = 120 * time.Second
	}

	h := hooks.New()
	httpClient := h.Client(base)
	httpClient.Timeout = timeout

	return &Client{
		httpClient: httpClient,
		hooks:      h,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Hooks returns the client's correlation registry.
func (c *Client) Hooks() *hooks.Hooks { return c.hooks }

// BaseURL returns the normalized backend URL.
func (c *Client) BaseURL() string { return c.baseURL }

// MapModel applies ModelMapper to model.
func (c *Client) MapModel(model string) string {
	if c.ModelMapper != nil {
		return c.ModelMapper(model)
	}
	return model
}

// Generate performs one non-streaming request against the Chat Completions
// endpoint. extra holds backend-specific arguments merged into the body.
func (c *Client) Generate(ctx context.Context, model string, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig, extra map[string]any) (*api.ModelOutput, *api.ModelCall, error) {
	chatReq := TranslateToChat(c.MapModel(model), messages, tools, toolChoice, cfg)

	body, err := EncodeRequest(chatReq, extra)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding request: %w", err)
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	id := c.hooks.StartRequest()
	defer c.hooks.EndRequest(id)
	headers[hooks.RequestIDHeader] = id

	resp, err := chatapi.PostJSON(ctx, c.httpClient, c.baseURL+"/v1/chat/completions", headers, body)
	if err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) {
			statusErr.Call = api.NewModelCall(body, []byte(statusErr.Body), c.hooks.EndRequest(id))
			debug.Log(debug.Providers, "chat completions error", "status", statusErr.StatusCode, "message", BackendMessage(err))
		}
		return nil, nil, err
	}
	call := api.NewModelCall(body, resp.Body, c.hooks.EndRequest(id))

	var chatResp WireResponse
	if err := json.Unmarshal(resp.Body, &chatResp); err != nil {
		return nil, nil, &api.ProtocolError{Message: "failed to parse backend response", Body: debug.Truncate(string(resp.Body), 512), Err: err, Call: call}
	}

	out, err := TranslateResponse(&chatResp, tools)
	if err != nil {
		return nil, nil, &api.ProtocolError{Message: err.Error(), Body: debug.Truncate(string(resp.Body), 512), Call: call}
	}
	if out.Model == "" {
		out.Model = model
	}
	return out, call, nil
}

// ListModels returns available models from the backend by querying
// the /v1/models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	url := c.baseURL + "/v1/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &api.TransportError{Op: http.MethodGet, URL: url, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &api.StatusError{StatusCode: httpResp.StatusCode}
	}

	var modelsResp WireModelList
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, &api.ProtocolError{Message: "failed to parse models response", Err: err}
	}

	var models []provider.ModelInfo
	for _, m := range modelsResp.Data {
		models = append(models, provider.ModelInfo{
			ID:      m.ID,
			Object:  "model",
			OwnedBy: m.OwnedBy,
		})
	}

	return models, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
