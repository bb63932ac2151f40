package cloudflare

import "encoding/json"

// runResponse is the Workers AI response envelope.
type runResponse struct {
	Success bool            `json:"success"`
	Result  *runResult      `json:"result"`
	Errors  json.RawMessage `json:"errors"`
}

type runResult struct {
	Response  json.RawMessage `json:"response"`
	ToolCalls []runToolCall   `json:"tool_calls,omitempty"`
	Usage     *runUsage       `json:"usage,omitempty"`
}

type runToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type runUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// runError is the object form of an envelope error. Some endpoints return
// plain strings instead.
type runError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
