// Package tools defines the tool executor contract used by the engine's
// tool loop. A ToolExecutor advertises tools as api.ToolInfo values and
// runs api.ToolCall requests, answering each with a tool-role
// api.ChatMessage.
//
// Two executor kinds exist: local Go functions (Functions) and tools hosted
// on MCP servers (package tools/mcp). The package also provides
// allowed-tools filtering for calls produced by the model.
package tools
