// Package api defines the canonical, backend-agnostic types shared by every
// provider adapter: conversation messages, tool definitions and tool calls,
// generation options, model output, and the ModelCall audit record.
//
// The package performs no I/O. Adapters only read the values callers pass in;
// they never mutate a ChatMessage or ToolInfo.
//
// Core types:
//   - [ChatMessage]: one turn of a conversation (system, user, assistant, tool)
//   - [ToolInfo]: a tool the model may call, with a JSON Schema for its parameters
//   - [ToolChoice]: auto, none, or a forced tool by name
//   - [GenerateConfig]: optional generation settings; nil means backend default
//   - [ModelOutput]: the choices produced by one generate call
//   - [ModelCall]: the raw request/response pair and round-trip time of one call
//
// Error taxonomy:
//   - [ConfigurationError]: a required credential is missing at construction
//   - [BackendError]: the backend answered but reported failure in its payload
//   - [TransportError]: the request never produced a response
//   - [StatusError]: the backend answered with a non-2xx HTTP status
//   - [ProtocolError]: the response did not have the expected wire shape
package api
