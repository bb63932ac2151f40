// Package mcp exposes tools hosted on Model Context Protocol servers as a
// tools.ToolExecutor. Each configured server is reached over
// streamable-http or SSE through the official MCP Go SDK; its tools are
// listed as api.ToolInfo values and calls are answered with tool-role
// api.ChatMessage results.
package mcp
