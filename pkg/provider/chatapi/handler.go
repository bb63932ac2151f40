package chatapi

import (
	"github.com/rhuss/modelapi/pkg/api"
)

// Message is one entry of a chat backend's messages array.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Handler is a model-family translation strategy.
type Handler interface {
	// Name identifies the handler in logs.
	Name() string

	// InputWithTools returns the conversation with tool definitions and the
	// tool-choice policy embedded as the family expects. The input slice is
	// not modified.
	InputWithTools(messages []api.ChatMessage, tools []api.ToolInfo, toolChoice api.ToolChoice) []api.ChatMessage

	// AssistantMessage encodes an assistant turn, including its tool calls.
	AssistantMessage(m api.ChatMessage) Message

	// ToolMessage encodes a tool result turn.
	ToolMessage(m api.ChatMessage) Message

	// ParseAssistantResponse decodes completion text into an assistant
	// message, resolving tool calls against tools.
	ParseAssistantResponse(content string, tools []api.ToolInfo) api.ChatMessage
}

// Input encodes messages for a chat backend using handler h.
func Input(messages []api.ChatMessage, tools []api.ToolInfo, toolChoice api.ToolChoice, h Handler) []Message {
	messages = h.InputWithTools(messages, tools, toolChoice)
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case api.RoleAssistant:
			out = append(out, h.AssistantMessage(m))
		case api.RoleTool:
			out = append(out, h.ToolMessage(m))
		default:
			out = append(out, Message{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

// GenericHandler passes messages through unchanged. Tools are not embedded
// and completions are returned as plain text.
type GenericHandler struct {
	model string
}

var _ Handler = (*GenericHandler)(nil)

// NewGenericHandler creates a GenericHandler.
func NewGenericHandler(model string) Handler {
	return &GenericHandler{model: model}
}

// Name implements Handler.
func (h *GenericHandler) Name() string { return "generic" }

// InputWithTools implements Handler.
func (h *GenericHandler) InputWithTools(messages []api.ChatMessage, _ []api.ToolInfo, _ api.ToolChoice) []api.ChatMessage {
	return messages
}

// AssistantMessage implements Handler.
func (h *GenericHandler) AssistantMessage(m api.ChatMessage) Message {
	return Message{Role: string(api.RoleAssistant), Content: m.Content}
}

// ToolMessage implements Handler.
func (h *GenericHandler) ToolMessage(m api.ChatMessage) Message {
	return Message{Role: string(api.RoleTool), Content: m.Text()}
}

// ParseAssistantResponse implements Handler.
func (h *GenericHandler) ParseAssistantResponse(content string, _ []api.ToolInfo) api.ChatMessage {
	return api.AssistantMessage(content)
}
