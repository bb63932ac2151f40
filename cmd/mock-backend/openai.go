package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
)

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []chatTool    `json:"tools,omitempty"`
	ToolChoice any           `json:"tool_choice,omitempty"`
}

type chatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name       string `json:"name"`
		Parameters struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"parameters"`
	} `json:"function"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type toolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function funcCall `json:"function"`
}

type funcCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

var callSeq atomic.Int64

func (b *backend) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, &failure{status: http.StatusBadRequest, message: "invalid request body"})
		return
	}
	if f := b.injectedFailure(lastUserMessage(req.Messages)); f != nil {
		writeOpenAIError(w, f)
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}
	resp := chatResponse{
		ID:      fmt.Sprintf("chatcmpl-mock-%d", callSeq.Add(1)),
		Object:  "chat.completion",
		Created: 1700000000,
		Model:   model,
	}
	if tc, ok := toolCallFor(&req); ok {
		resp.Choices = []chatChoice{{
			Message:      chatMsg{Role: "assistant", ToolCalls: []toolCall{tc}},
			FinishReason: "tool_calls",
		}}
		resp.Usage = chatUsage{PromptTokens: 20, CompletionTokens: 15, TotalTokens: 35}
	} else {
		text := reply(req.Messages)
		resp.Choices = []chatChoice{{
			Message:      chatMsg{Role: "assistant", Content: &text},
			FinishReason: "stop",
		}}
		resp.Usage = chatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	}
	writeJSON(w, http.StatusOK, resp)
}

// toolCallFor calls the first offered tool unless the conversation already
// holds a tool result or tool_choice is "none". String properties of the
// tool's schema receive the user's prompt.
func toolCallFor(req *chatRequest) (toolCall, bool) {
	if len(req.Tools) == 0 || req.ToolChoice == "none" {
		return toolCall{}, false
	}
	if hasRole(req.Messages, "tool") {
		return toolCall{}, false
	}

	tool := req.Tools[0]
	if forced, ok := req.ToolChoice.(map[string]any); ok {
		if fn, ok := forced["function"].(map[string]any); ok {
			for _, t := range req.Tools {
				if t.Function.Name == fn["name"] {
					tool = t
				}
			}
		}
	}

	names := make([]string, 0, len(tool.Function.Parameters.Properties))
	for name := range tool.Function.Parameters.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	args := make(map[string]string, len(names))
	for _, name := range names {
		var prop struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(tool.Function.Parameters.Properties[name], &prop) == nil && prop.Type == "string" {
			args[name] = lastUserMessage(req.Messages)
		}
	}
	data, _ := json.Marshal(args)

	return toolCall{
		ID:       fmt.Sprintf("call_mock_%d", callSeq.Add(1)),
		Type:     "function",
		Function: funcCall{Name: tool.Function.Name, Arguments: string(data)},
	}, true
}

func writeOpenAIError(w http.ResponseWriter, f *failure) {
	if f.retryAfter != "" {
		w.Header().Set("Retry-After", f.retryAfter)
	}
	writeJSON(w, f.status, map[string]any{
		"error": map[string]any{
			"message": f.message,
			"type":    http.StatusText(f.status),
		},
	})
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "modelapi-mock"},
		},
	})
}
