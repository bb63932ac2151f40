package provider

import (
	"github.com/rhuss/modelapi/pkg/api"
)

// SupportedTools returns the tools and tool choice a provider can act on.
// A provider without tool calling never sees tools: they are dropped and
// the choice becomes none, the same as a backend that ignores them.
func SupportedTools(caps Capabilities, tools []api.ToolInfo, toolChoice api.ToolChoice) ([]api.ToolInfo, api.ToolChoice) {
	if caps.ToolCalling || len(tools) == 0 {
		return tools, toolChoice
	}
	return nil, api.ToolChoiceNone
}

// ValidateCapabilities checks a request, after SupportedTools, against the
// provider's declared capabilities. It returns an InvalidRequestError
// naming the unsupported feature, or nil.
func ValidateCapabilities(caps Capabilities, tools []api.ToolInfo, toolChoice api.ToolChoice) *api.InvalidRequestError {
	if len(tools) > 0 && !caps.ToolCalling && !toolChoice.IsNone() {
		return api.NewInvalidRequestError("tools",
			"the configured provider does not support tool calling")
	}

	if _, forced := toolChoice.Forced(); forced && len(tools) > 0 && !caps.ForcedToolChoice {
		return api.NewInvalidRequestError("tool_choice",
			"the configured provider does not support forcing a tool")
	}

	return nil
}
