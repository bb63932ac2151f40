package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a ChatMessage.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is the canonical representation of one conversation turn.
//
// Assistant messages may carry ToolCalls. Tool messages answer a single
// tool call and carry its ToolCallID, the Function that produced the result,
// and an optional Error when the tool failed.
type ChatMessage struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Function   string         `json:"function,omitempty"`
	Error      *ToolCallError `json:"error,omitempty"`
}

// SystemMessage builds a system turn.
func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: text}
}

// UserMessage builds a user turn.
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: text}
}

// AssistantMessage builds an assistant turn with optional tool calls.
func AssistantMessage(text string, calls ...ToolCall) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// ToolMessage builds the result turn for a tool call.
func ToolMessage(callID, function, text string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: text, ToolCallID: callID, Function: function}
}

// Text returns the message text. For a failed tool result this is the
// error message prefixed with "Error: ".
func (m ChatMessage) Text() string {
	if m.Role == RoleTool && m.Error != nil {
		return "Error: " + m.Error.Message
	}
	return m.Content
}

// ToolCallError describes why a tool call failed or could not be parsed.
type ToolCallError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ToolCall is a model request to invoke a tool.
//
// Arguments holds the decoded JSON arguments. When the backend returned
// arguments that could not be decoded or did not satisfy the tool's
// parameter schema, ParseError explains why and RawArguments keeps the
// original text.
type ToolCall struct {
	ID           string         `json:"id"`
	Function     string         `json:"function"`
	Arguments    map[string]any `json:"arguments"`
	RawArguments string         `json:"raw_arguments,omitempty"`
	ParseError   string         `json:"parse_error,omitempty"`
}

// ArgumentsJSON returns the arguments encoded as a JSON object. It falls
// back to RawArguments when Arguments is empty.
func (c ToolCall) ArgumentsJSON() string {
	if len(c.Arguments) == 0 {
		if c.RawArguments != "" {
			return c.RawArguments
		}
		return "{}"
	}
	data, err := json.Marshal(c.Arguments)
	if err != nil {
		return c.RawArguments
	}
	return string(data)
}

// ToolInfo describes a tool available to the model. Parameters is a JSON
// Schema object describing the tool's arguments.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// FindTool returns the tool with the given name.
func FindTool(tools []ToolInfo, name string) (ToolInfo, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolInfo{}, false
}

// ToolChoiceMode selects how the model may use tools.
type ToolChoiceMode string

const (
	ToolChoiceModeAuto   ToolChoiceMode = "auto"
	ToolChoiceModeNone   ToolChoiceMode = "none"
	ToolChoiceModeForced ToolChoiceMode = "forced"
)

// ToolChoice is the tool selection policy: auto, none, or forced(name).
// The zero value behaves like auto.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode"`
	Name string         `json:"name,omitempty"`
}

var (
	// ToolChoiceAuto lets the model decide whether to use a tool.
	ToolChoiceAuto = ToolChoice{Mode: ToolChoiceModeAuto}
	// ToolChoiceNone prevents the model from using any tool.
	ToolChoiceNone = ToolChoice{Mode: ToolChoiceModeNone}
)

// ToolChoiceForced requires the model to call the named tool.
func ToolChoiceForced(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceModeForced, Name: name}
}

// IsAuto reports whether the choice leaves tool use to the model.
func (tc ToolChoice) IsAuto() bool {
	return tc.Mode == "" || tc.Mode == ToolChoiceModeAuto
}

// IsNone reports whether tool use is disabled.
func (tc ToolChoice) IsNone() bool {
	return tc.Mode == ToolChoiceModeNone
}

// Forced returns the required tool name, if any.
func (tc ToolChoice) Forced() (string, bool) {
	if tc.Mode == ToolChoiceModeForced && tc.Name != "" {
		return tc.Name, true
	}
	return "", false
}

// String renders the choice as "auto", "none" or "forced(name)".
func (tc ToolChoice) String() string {
	if name, ok := tc.Forced(); ok {
		return fmt.Sprintf("forced(%s)", name)
	}
	if tc.IsNone() {
		return "none"
	}
	return "auto"
}

// ParseToolChoice parses the String form of a ToolChoice. A bare tool name
// is treated as forced.
func ParseToolChoice(s string) ToolChoice {
	s = strings.TrimSpace(s)
	switch s {
	case "", "auto":
		return ToolChoiceAuto
	case "none":
		return ToolChoiceNone
	}
	if strings.HasPrefix(s, "forced(") && strings.HasSuffix(s, ")") {
		return ToolChoiceForced(strings.TrimSuffix(strings.TrimPrefix(s, "forced("), ")"))
	}
	return ToolChoiceForced(s)
}
