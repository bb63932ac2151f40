package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rhuss/modelapi/pkg/api"
)

// Func implements a tool in Go. It receives the decoded arguments and
// returns the text handed back to the model.
type Func func(ctx context.Context, args map[string]any) (string, error)

// Functions is a ToolExecutor for tools implemented by Go functions.
// Registration is first-come, first-served: a second tool with an existing
// name is ignored.
type Functions struct {
	mu    sync.RWMutex
	order []string
	tools map[string]function
}

type function struct {
	info api.ToolInfo
	fn   Func
}

// Ensure Functions implements ToolExecutor at compile time.
var _ ToolExecutor = (*Functions)(nil)

// NewFunctions creates an empty function executor.
func NewFunctions() *Functions {
	return &Functions{tools: make(map[string]function)}
}

// Register adds a tool. It reports false when the name is already taken.
func (f *Functions) Register(info api.ToolInfo, fn Func) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.tools[info.Name]; exists {
		slog.Warn("function tool name conflict, keeping first registration", "tool", info.Name)
		return false
	}
	f.tools[info.Name] = function{info: info, fn: fn}
	f.order = append(f.order, info.Name)
	return true
}

// Kind returns ToolKindFunction.
func (f *Functions) Kind() ToolKind {
	return ToolKindFunction
}

// Tools returns the registered tools in registration order.
func (f *Functions) Tools(context.Context) ([]api.ToolInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]api.ToolInfo, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.tools[name].info)
	}
	return out, nil
}

// Names returns the registered tool names, sorted.
func (f *Functions) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := append([]string(nil), f.order...)
	sort.Strings(names)
	return names
}

// CanExecute reports whether a tool with the given name is registered.
func (f *Functions) CanExecute(toolName string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.tools[toolName]
	return ok
}

// Execute runs the named function and recovers from panics inside it.
func (f *Functions) Execute(ctx context.Context, call api.ToolCall) (result api.ChatMessage, err error) {
	f.mu.RLock()
	t, ok := f.tools[call.Function]
	f.mu.RUnlock()

	if !ok {
		return ErrorResult(call, ErrorTypeNotFound, fmt.Sprintf("no function handles tool %q", call.Function)), nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("function tool panicked", "tool", call.Function, "panic", rec)
			result = ErrorResult(call, ErrorTypeExecution,
				fmt.Sprintf("internal error: tool %q panicked", call.Function))
			err = nil
		}
	}()

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	out, runErr := t.fn(ctx, args)
	if runErr != nil {
		return ErrorResult(call, ErrorTypeExecution, runErr.Error()), nil
	}
	return Result(call, out), nil
}
