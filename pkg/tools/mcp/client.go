package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/tools"
)

// clientName is announced to MCP servers during the handshake.
const clientName = "modelapi"

// Client is one MCP server connection. It caches the server's tool list
// after the first successful listing.
type Client struct {
	cfg     ServerConfig
	session *mcp.ClientSession

	mu          sync.Mutex
	cachedTools []api.ToolInfo
	listed      bool
}

// NewClient creates a Client for the given server. Call Connect before use.
func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg}
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.cfg.Name }

// Connect performs the MCP handshake over the configured transport.
func (c *Client) Connect(ctx context.Context) error {
	transport, err := c.transport()
	if err != nil {
		return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
	}
	return c.ConnectWithTransport(ctx, transport)
}

// ConnectWithTransport performs the MCP handshake over transport.
func (c *Client) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	debug.Log(debug.MCP, "connected", "server", c.cfg.Name, "transport", c.cfg.Transport)
	return nil
}

func (c *Client) transport() (mcp.Transport, error) {
	hc := httpClient(context.Background(), c.cfg)

	switch c.cfg.Transport {
	case TransportSSE:
		t := &mcp.SSEClientTransport{Endpoint: c.cfg.URL}
		if hc != nil {
			t.HTTPClient = hc
		}
		return t, nil
	case TransportStreamableHTTP, "":
		t := &mcp.StreamableClientTransport{Endpoint: c.cfg.URL}
		if hc != nil {
			t.HTTPClient = hc
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// ListTools returns the server's tools as api.ToolInfo values.
func (c *Client) ListTools(ctx context.Context) ([]api.ToolInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listed {
		return c.cachedTools, nil
	}
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	var infos []api.ToolInfo
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		info, err := toolInfo(tool)
		if err != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", tool.Name, c.cfg.Name, err)
		}
		infos = append(infos, info)
	}

	c.cachedTools = infos
	c.listed = true
	return infos, nil
}

// CallTool runs call on the server. Protocol failures are returned as
// failed tool messages so the model can see them.
func (c *Client) CallTool(ctx context.Context, call api.ToolCall) (api.ChatMessage, error) {
	if c.session == nil {
		return api.ChatMessage{}, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      call.Function,
		Arguments: args,
	})
	if err != nil {
		return tools.ErrorResult(call, tools.ErrorTypeUnavailable, fmt.Sprintf("MCP tool call error: %v", err)), nil
	}

	text := resultText(result)
	if result.IsError {
		return tools.ErrorResult(call, tools.ErrorTypeExecution, text), nil
	}
	return tools.Result(call, text), nil
}

// Close ends the MCP session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func toolInfo(t *mcp.Tool) (api.ToolInfo, error) {
	info := api.ToolInfo{Name: t.Name, Description: t.Description}
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return api.ToolInfo{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		info.Parameters = data
	}
	return info, nil
}

// resultText joins the text content of a tool result. Structured content
// is used when the server sent no text.
func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 && result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			return string(data)
		}
	}
	return strings.Join(parts, "\n")
}
