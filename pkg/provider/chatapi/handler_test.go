package chatapi

import (
	"testing"

	"github.com/rhuss/modelapi/pkg/api"
)

func TestSelectHandler(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"meta/llama-3.1-8b-instruct", "llama31"},
		{"META/LLAMA-3.3-70B", "llama31"},
		{"mistral/mistral-7b-instruct-v0.1", "generic"},
		{"qwen1.5-14b-chat-awq", "generic"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := SelectHandler(tt.model, DefaultRules).Name(); got != tt.want {
				t.Errorf("SelectHandler(%q) = %s, want %s", tt.model, got, tt.want)
			}
		})
	}
}

func TestSelectHandler_FirstRuleWins(t *testing.T) {
	rules := []HandlerRule{
		{Pattern: "llama-3.1", New: NewGenericHandler},
		{Pattern: "llama", New: NewLlama31Handler},
	}
	if got := SelectHandler("llama-3.1-8b", rules).Name(); got != "generic" {
		t.Errorf("SelectHandler() = %s, want generic", got)
	}
	if got := SelectHandler("llama-2-7b", rules).Name(); got != "llama31" {
		t.Errorf("SelectHandler() = %s, want llama31", got)
	}
	if got := SelectHandler("anything", nil).Name(); got != "generic" {
		t.Errorf("SelectHandler(nil rules) = %s, want generic", got)
	}
}

func TestInput_Generic(t *testing.T) {
	call := api.ToolCall{ID: "tool_1", Function: "add", Arguments: map[string]any{"x": 1.0}}
	messages := []api.ChatMessage{
		api.SystemMessage("be brief"),
		api.UserMessage("add 1"),
		api.AssistantMessage("calling", call),
		{Role: api.RoleTool, ToolCallID: "tool_1", Function: "add", Error: &api.ToolCallError{Message: "boom"}},
	}
	tools := []api.ToolInfo{{Name: "add"}}

	got := Input(messages, tools, api.ToolChoiceAuto, NewGenericHandler("m"))
	want := []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "add 1"},
		{Role: "assistant", Content: "calling"},
		{Role: "tool", Content: "Error: boom"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGenericHandler_Parse(t *testing.T) {
	msg := NewGenericHandler("m").ParseAssistantResponse("42", nil)
	if msg.Role != api.RoleAssistant || msg.Content != "42" || len(msg.ToolCalls) != 0 {
		t.Errorf("ParseAssistantResponse() = %+v", msg)
	}
}
