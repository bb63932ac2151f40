package tools

import (
	"context"
	"fmt"

	"github.com/rhuss/modelapi/pkg/api"
)

// ToolKind classifies how a tool is hosted and executed.
type ToolKind int

const (
	// ToolKindFunction is a tool implemented by a Go function in the
	// calling process.
	ToolKindFunction ToolKind = iota

	// ToolKindMCP is a tool served by a Model Context Protocol server.
	ToolKindMCP
)

// String returns the kind name used in logs and metric labels.
func (k ToolKind) String() string {
	switch k {
	case ToolKindFunction:
		return "function"
	case ToolKindMCP:
		return "mcp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error types recorded on failed tool results.
const (
	ErrorTypeParsing     = "parsing"
	ErrorTypeNotFound    = "not_found"
	ErrorTypeNotAllowed  = "permission"
	ErrorTypeExecution   = "execution"
	ErrorTypeUnavailable = "unavailable"
)

// ToolExecutor executes tool calls.
type ToolExecutor interface {
	// Kind returns the type of tools this executor handles.
	Kind() ToolKind

	// Tools lists the tools this executor offers to the model.
	Tools(ctx context.Context) ([]api.ToolInfo, error)

	// CanExecute checks if this executor can handle the given tool name.
	CanExecute(toolName string) bool

	// Execute runs the tool and returns the tool-role result message.
	// A tool that ran and failed is reported through the message's Error
	// field; a non-nil error means the executor itself could not run.
	Execute(ctx context.Context, call api.ToolCall) (api.ChatMessage, error)
}

// Result builds the successful result message for call.
func Result(call api.ToolCall, output string) api.ChatMessage {
	return api.ToolMessage(call.ID, call.Function, output)
}

// ErrorResult builds a failed result message for call.
func ErrorResult(call api.ToolCall, errType, message string) api.ChatMessage {
	msg := api.ToolMessage(call.ID, call.Function, "")
	msg.Error = &api.ToolCallError{Type: errType, Message: message}
	return msg
}

// Collect gathers the tools of every executor. Duplicate names keep the
// first executor's definition.
func Collect(ctx context.Context, executors []ToolExecutor) ([]api.ToolInfo, error) {
	var out []api.ToolInfo
	seen := make(map[string]bool)
	for _, exec := range executors {
		infos, err := exec.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s tools: %w", exec.Kind(), err)
		}
		for _, info := range infos {
			if seen[info.Name] {
				continue
			}
			seen[info.Name] = true
			out = append(out, info)
		}
	}
	return out, nil
}

// Find returns the first executor that can run the named tool.
func Find(executors []ToolExecutor, toolName string) ToolExecutor {
	for _, exec := range executors {
		if exec.CanExecute(toolName) {
			return exec
		}
	}
	return nil
}
