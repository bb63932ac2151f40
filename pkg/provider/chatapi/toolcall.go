package chatapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/rhuss/modelapi/pkg/api"
)

// ParseToolCall builds a ToolCall from a function name and its JSON
// argument text. Problems are recorded in ToolCall.ParseError rather than
// returned: the function may be unknown, the arguments may not decode to a
// JSON object, or they may violate the tool's parameter schema.
func ParseToolCall(id, function, arguments string, tools []api.ToolInfo) api.ToolCall {
	if id == "" {
		id = api.NewToolCallID()
	}
	call := api.ToolCall{
		ID:           id,
		Function:     function,
		Arguments:    map[string]any{},
		RawArguments: arguments,
	}

	tool, ok := api.FindTool(tools, function)
	if !ok {
		call.ParseError = fmt.Sprintf("Tool function '%s' not found.", function)
		return call
	}

	text := strings.TrimSpace(arguments)
	if text != "" {
		var args map[string]any
		if err := json.Unmarshal([]byte(text), &args); err != nil {
			call.ParseError = fmt.Sprintf("Error parsing the following tool call arguments:\n\n%s\n\nError details: %v", arguments, err)
			return call
		}
		if args != nil {
			call.Arguments = args
		}
	}

	if err := validateArguments(tool, call.Arguments); err != nil {
		call.ParseError = fmt.Sprintf("Found validation errors parsing tool input arguments:\n- %v", err)
	}
	return call
}

func validateArguments(tool api.ToolInfo, args map[string]any) error {
	if len(tool.Parameters) == 0 {
		return nil
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
		return fmt.Errorf("invalid parameter schema for %s: %w", tool.Name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("invalid parameter schema for %s: %w", tool.Name, err)
	}
	return resolved.Validate(args)
}
