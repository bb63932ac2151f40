package tools

import "github.com/rhuss/modelapi/pkg/api"

// FilterResult holds the outcome of filtering tool calls against allowed_tools.
type FilterResult struct {
	// Allowed contains tool calls that passed the filter.
	Allowed []api.ToolCall

	// Rejected contains error results for tool calls that were not in the
	// allowed list or whose arguments could not be parsed. They are fed
	// back to the model instead of being executed.
	Rejected []api.ChatMessage
}

// FilterAllowedTools checks each tool call against the allowed list.
// If allowedTools is empty or nil, all tool calls are allowed. Calls that
// carry a ParseError are always rejected.
func FilterAllowedTools(calls []api.ToolCall, allowedTools []string) FilterResult {
	allowed := make(map[string]bool, len(allowedTools))
	for _, name := range allowedTools {
		allowed[name] = true
	}

	var result FilterResult
	for _, call := range calls {
		switch {
		case call.ParseError != "":
			result.Rejected = append(result.Rejected, ErrorResult(call, ErrorTypeParsing, call.ParseError))
		case len(allowed) > 0 && !allowed[call.Function]:
			result.Rejected = append(result.Rejected, ErrorResult(call, ErrorTypeNotAllowed,
				"tool "+call.Function+" is not in the allowed_tools list"))
		default:
			result.Allowed = append(result.Allowed, call)
		}
	}

	return result
}
