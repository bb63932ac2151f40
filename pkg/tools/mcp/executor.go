package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/tools"
)

// Executor implements tools.ToolExecutor over one or more MCP servers.
// Tools are discovered on first use; when two servers offer the same tool
// name the server that sorts first by name wins.
type Executor struct {
	mu      sync.RWMutex
	clients map[string]*Client

	// toolToServer maps tool name to the server that provides it.
	toolToServer map[string]string
	infos        []api.ToolInfo
	discovered   bool
}

// Ensure Executor implements tools.ToolExecutor at compile time.
var _ tools.ToolExecutor = (*Executor)(nil)

// NewExecutor creates an Executor over already connected clients.
func NewExecutor(clients ...*Client) *Executor {
	m := make(map[string]*Client, len(clients))
	for _, c := range clients {
		m[c.Name()] = c
	}
	return &Executor{clients: m, toolToServer: make(map[string]string)}
}

// Connect dials every server in cfg and returns an Executor over those
// that answered. A server that fails to connect is logged and skipped; an
// error is returned only when none of them connected.
func Connect(ctx context.Context, cfg Config) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var clients []*Client
	var errs []error
	for _, sc := range cfg.Servers {
		c := NewClient(sc)
		if err := c.Connect(ctx); err != nil {
			slog.Warn("skipping MCP server", "server", sc.Name, "url", sc.URL, "error", err)
			errs = append(errs, err)
			continue
		}
		clients = append(clients, c)
	}
	if len(clients) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("no MCP server reachable: %w", errors.Join(errs...))
	}
	return NewExecutor(clients...), nil
}

// Kind returns ToolKindMCP.
func (e *Executor) Kind() tools.ToolKind {
	return tools.ToolKindMCP
}

// Tools returns the tools of every server. A server whose listing fails
// is logged and skipped.
func (e *Executor) Tools(ctx context.Context) ([]api.ToolInfo, error) {
	e.discover(ctx)

	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]api.ToolInfo(nil), e.infos...), nil
}

// CanExecute reports whether any server provides the named tool.
func (e *Executor) CanExecute(toolName string) bool {
	e.discover(context.Background())

	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.toolToServer[toolName]
	return ok
}

// Execute routes the call to the server that provides the tool.
func (e *Executor) Execute(ctx context.Context, call api.ToolCall) (api.ChatMessage, error) {
	e.discover(ctx)

	e.mu.RLock()
	server, ok := e.toolToServer[call.Function]
	client := e.clients[server]
	e.mu.RUnlock()

	if !ok {
		return tools.ErrorResult(call, tools.ErrorTypeNotFound,
			fmt.Sprintf("no MCP server provides tool %q", call.Function)), nil
	}
	return client.CallTool(ctx, call)
}

// Close closes every server connection and returns the joined errors.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, client := range e.clients {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close MCP client", "server", name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) discover(ctx context.Context) {
	e.mu.RLock()
	done := e.discovered
	e.mu.RUnlock()
	if done {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.discovered {
		return
	}

	names := make([]string, 0, len(e.clients))
	for name := range e.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		infos, err := e.clients[name].ListTools(ctx)
		if err != nil {
			slog.Error("failed to discover tools from MCP server", "server", name, "error", err)
			continue
		}
		for _, info := range infos {
			if winner, exists := e.toolToServer[info.Name]; exists {
				slog.Warn("duplicate MCP tool name, keeping first server",
					"tool", info.Name, "winner", winner, "server", name)
				continue
			}
			e.toolToServer[info.Name] = name
			e.infos = append(e.infos, info)
		}
		slog.Info("discovered MCP tools", "server", name, "count", len(infos))
	}

	e.discovered = true
}
