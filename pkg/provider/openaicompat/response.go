package openaicompat

import (
	"fmt"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/provider/chatapi"
)

// TranslateResponse converts a WireResponse into a ModelOutput.
// Every choice is mapped; tool call arguments are decoded and validated
// against tools.
func TranslateResponse(resp *WireResponse, tools []api.ToolInfo) (*api.ModelOutput, error) {
	// Need at least one choice. Empty choices means the backend produced no output.
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}

	out := &api.ModelOutput{Model: resp.Model}

	if resp.Usage != nil {
		out.Usage = &api.ModelUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	for _, choice := range resp.Choices {
		msg := api.AssistantMessage(ExtractContentString(choice.Message.Content))
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls,
				chatapi.ParseToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments, tools))
		}
		out.Choices = append(out.Choices, api.ChatCompletionChoice{
			Message:    msg,
			StopReason: MapFinishReason(choice.FinishReason),
		})
	}

	return out, nil
}

// MapFinishReason converts a Chat Completions finish_reason string to a
// StopReason.
func MapFinishReason(reason string) api.StopReason {
	switch reason {
	case "stop", "eos":
		return api.StopReasonStop
	case "length":
		return api.StopReasonMaxTokens
	case "tool_calls", "function_call":
		return api.StopReasonToolCalls
	case "content_filter":
		return api.StopReasonContentFilter
	default:
		return api.StopReasonUnknown
	}
}

// ExtractContentString attempts to get a plain string from the message content.
// The content field in Chat Completions can be a string, nil, or an array
// of text parts.
func ExtractContentString(content any) string {
	if content == nil {
		return ""
	}
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var text string
		for _, part := range v {
			if m, ok := part.(map[string]any); ok {
				if s, ok := m["text"].(string); ok {
					text += s
				}
			}
		}
		return text
	default:
		return ""
	}
}
