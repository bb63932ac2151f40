package openaicompat

import "encoding/json"

// Wire types for the OpenAI Chat Completions protocol, as spoken by vLLM,
// LiteLLM, Ollama and OpenAI itself. Only the fields this module reads or
// writes are declared.

// WireRequest is the body POSTed to /chat/completions.
type WireRequest struct {
	Model            string        `json:"model"`
	Messages         []WireMessage `json:"messages"`
	Tools            []WireTool    `json:"tools,omitempty"`
	ToolChoice       any           `json:"tool_choice,omitempty"` // "auto", "none" or a function selector
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	TopK             *int          `json:"top_k,omitempty"` // vLLM extension
	MaxTokens        *int          `json:"max_tokens,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
	N                int           `json:"n"`
	Seed             *int          `json:"seed,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
}

// WireMessage is one conversation turn. Content is a string, or null on an
// assistant turn that only calls tools.
type WireMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []WireToolCall `json:"tool_calls,omitempty"`
}

type WireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // always "function"
	Function WireFunctionCall `json:"function"`
}

// WireFunctionCall carries arguments as a JSON-encoded string.
type WireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type WireTool struct {
	Type     string       `json:"type"`
	Function WireFunction `json:"function"`
}

type WireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// WireResponse is a non-streaming completion.
type WireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []WireChoice `json:"choices"`
	Usage   *WireUsage   `json:"usage,omitempty"`
}

type WireChoice struct {
	Index        int         `json:"index"`
	Message      WireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type WireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// WireError is the error envelope. Code is a string on OpenAI and a
// number on some proxies.
type WireError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// WireModelList is the body of GET /models.
type WireModelList struct {
	Data []WireModel `json:"data"`
}

type WireModel struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}
