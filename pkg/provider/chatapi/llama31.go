package chatapi

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rhuss/modelapi/pkg/api"
)

var (
	functionCallPattern = regexp.MustCompile(`(?s)<function=([^>]+)>(.*?)</function>`)
	toolCallPattern     = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)

	specialTokens = strings.NewReplacer("<|eom_id|>", "", "<|eot_id|>", "", "<|python_tag|>", "")
)

const llama31ToolPrompt = `You have access to the following functions:

%s
If you choose to call a function ONLY reply in the following format with no prefix or suffix:

<function=example_function_name>{"example_name": "example_value"}</function>

Reminder:
- Function calls MUST follow the specified format, start with <function= and end with </function>
- Required parameters MUST be specified
- Only call one function at a time
- Put the entire function call reply on one line
- If there is no function call available, answer the question like normal with your current knowledge and do not tell the user about function calls`

// Llama31Handler emulates tool calling for Llama 3.1 family models through
// the <function=NAME>{json}</function> prompt convention.
type Llama31Handler struct {
	model string
}

var _ Handler = (*Llama31Handler)(nil)

// NewLlama31Handler creates a Llama31Handler.
func NewLlama31Handler(model string) Handler {
	return &Llama31Handler{model: model}
}

// Name implements Handler.
func (h *Llama31Handler) Name() string { return "llama31" }

// InputWithTools prepends the tool prompt to the system message, adding a
// system message when the conversation has none.
func (h *Llama31Handler) InputWithTools(messages []api.ChatMessage, tools []api.ToolInfo, toolChoice api.ToolChoice) []api.ChatMessage {
	if len(tools) == 0 || toolChoice.IsNone() {
		return messages
	}

	prompt := toolPrompt(tools, toolChoice)
	out := make([]api.ChatMessage, 0, len(messages)+1)
	if len(messages) > 0 && messages[0].Role == api.RoleSystem {
		sys := messages[0]
		sys.Content = strings.TrimSpace(sys.Content + "\n\n" + prompt)
		out = append(out, sys)
		out = append(out, messages[1:]...)
		return out
	}
	out = append(out, api.SystemMessage(prompt))
	return append(out, messages...)
}

func toolPrompt(tools []api.ToolInfo, toolChoice api.ToolChoice) string {
	var b strings.Builder
	for _, t := range tools {
		def := map[string]any{
			"name":        t.Name,
			"description": t.Description,
		}
		if len(t.Parameters) > 0 {
			def["parameters"] = t.Parameters
		}
		data, _ := json.Marshal(def)
		fmt.Fprintf(&b, "Use the function '%s' to: %s\n%s\n\n", t.Name, t.Description, data)
	}
	prompt := fmt.Sprintf(llama31ToolPrompt, b.String())
	if name, ok := toolChoice.Forced(); ok {
		prompt += fmt.Sprintf("\n\nYou MUST call the function '%s' in your reply.", name)
	}
	return prompt
}

// AssistantMessage renders tool calls back into the function-call syntax
// so the model sees its own prior calls.
func (h *Llama31Handler) AssistantMessage(m api.ChatMessage) Message {
	parts := make([]string, 0, len(m.ToolCalls)+1)
	if text := strings.TrimSpace(m.Content); text != "" {
		parts = append(parts, text)
	}
	for _, c := range m.ToolCalls {
		parts = append(parts, fmt.Sprintf("<function=%s>%s</function>", c.Function, c.ArgumentsJSON()))
	}
	return Message{Role: string(api.RoleAssistant), Content: strings.Join(parts, "\n\n")}
}

// ToolMessage sends tool results as a user turn.
func (h *Llama31Handler) ToolMessage(m api.ChatMessage) Message {
	return Message{
		Role:    string(api.RoleUser),
		Content: fmt.Sprintf("<function_result name=\"%s\">\n%s\n</function_result>", m.Function, m.Text()),
	}
}

// ParseAssistantResponse extracts every function call from content. The
// remaining text becomes the message content.
func (h *Llama31Handler) ParseAssistantResponse(content string, tools []api.ToolInfo) api.ChatMessage {
	content = specialTokens.Replace(content)
	content = strings.TrimPrefix(strings.TrimLeft(content, "\n"), "assistant\n\n")

	var calls []api.ToolCall
	for _, m := range functionCallPattern.FindAllStringSubmatch(content, -1) {
		calls = append(calls, ParseToolCall("", strings.TrimSpace(m[1]), m[2], tools))
	}
	content = functionCallPattern.ReplaceAllString(content, "")

	for _, m := range toolCallPattern.FindAllStringSubmatch(content, -1) {
		calls = append(calls, parseToolCallJSON(m[1], tools))
	}
	content = toolCallPattern.ReplaceAllString(content, "")

	return api.AssistantMessage(strings.TrimSpace(content), calls...)
}

// parseToolCallJSON handles the {"name": ..., "arguments": {...}} form some
// Llama deployments emit inside <tool_call> tags.
func parseToolCallJSON(text string, tools []api.ToolInfo) api.ToolCall {
	var raw struct {
		Name       string          `json:"name"`
		Arguments  json.RawMessage `json:"arguments"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return api.ToolCall{
			ID:           api.NewToolCallID(),
			Function:     "unknown",
			Arguments:    map[string]any{},
			RawArguments: text,
			ParseError:   fmt.Sprintf("Error parsing the following tool call:\n\n%s\n\nError details: %v", text, err),
		}
	}
	args := raw.Arguments
	if len(args) == 0 {
		args = raw.Parameters
	}
	return ParseToolCall("", raw.Name, string(args), tools)
}
