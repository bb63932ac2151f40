package api

import (
	"encoding/json"
	"fmt"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessages    int
	MaxContentSize int
	MaxTools       int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessages:    1000,
		MaxContentSize: 10 * 1024 * 1024, // 10MB
		MaxTools:       128,
	}
}

// InvalidRequestError reports a generate request that was rejected before
// any network activity.
type InvalidRequestError struct {
	Param   string
	Message string
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("invalid request: %s (param: %s)", e.Message, e.Param)
	}
	return "invalid request: " + e.Message
}

// NewInvalidRequestError creates an InvalidRequestError.
func NewInvalidRequestError(param, message string) *InvalidRequestError {
	return &InvalidRequestError{Param: param, Message: message}
}

// ValidateGenerate checks the inputs of a generate call. It returns an
// *InvalidRequestError describing the first failure, or nil.
func ValidateGenerate(messages []ChatMessage, tools []ToolInfo, toolChoice ToolChoice, cfg GenerateConfig, limits ValidationConfig) *InvalidRequestError {
	if len(messages) == 0 {
		return NewInvalidRequestError("messages", "at least one message is required")
	}
	if limits.MaxMessages > 0 && len(messages) > limits.MaxMessages {
		return NewInvalidRequestError("messages",
			fmt.Sprintf("messages exceeds maximum of %d", limits.MaxMessages))
	}

	size := 0
	for i, m := range messages {
		if err := ValidateMessage(m); err != nil {
			err.Param = fmt.Sprintf("messages[%d].%s", i, err.Param)
			return err
		}
		size += len(m.Content)
	}
	if limits.MaxContentSize > 0 && size > limits.MaxContentSize {
		return NewInvalidRequestError("messages",
			fmt.Sprintf("content exceeds maximum of %d bytes", limits.MaxContentSize))
	}

	if limits.MaxTools > 0 && len(tools) > limits.MaxTools {
		return NewInvalidRequestError("tools",
			fmt.Sprintf("tools exceeds maximum of %d", limits.MaxTools))
	}
	seen := make(map[string]bool, len(tools))
	for i, tool := range tools {
		if tool.Name == "" {
			return NewInvalidRequestError(fmt.Sprintf("tools[%d].name", i), "tool name is required")
		}
		if seen[tool.Name] {
			return NewInvalidRequestError(fmt.Sprintf("tools[%d].name", i),
				fmt.Sprintf("duplicate tool %q", tool.Name))
		}
		seen[tool.Name] = true
		if len(tool.Parameters) > 0 && !json.Valid(tool.Parameters) {
			return NewInvalidRequestError(fmt.Sprintf("tools[%d].parameters", i), "parameters must be valid JSON")
		}
	}

	// A forced tool choice must reference a supplied tool.
	if name, ok := toolChoice.Forced(); ok && !seen[name] {
		return NewInvalidRequestError("tool_choice",
			fmt.Sprintf("tool_choice references unknown tool %q", name))
	}

	if cfg.MaxTokens != nil && *cfg.MaxTokens <= 0 {
		return NewInvalidRequestError("max_tokens", "max_tokens must be positive")
	}
	if cfg.Temperature != nil && (*cfg.Temperature < 0.0 || *cfg.Temperature > 2.0) {
		return NewInvalidRequestError("temperature", "temperature must be between 0.0 and 2.0")
	}
	if cfg.TopP != nil && (*cfg.TopP < 0.0 || *cfg.TopP > 1.0) {
		return NewInvalidRequestError("top_p", "top_p must be between 0.0 and 1.0")
	}
	if cfg.TopK != nil && *cfg.TopK <= 0 {
		return NewInvalidRequestError("top_k", "top_k must be positive")
	}
	return nil
}

// ValidateMessage checks a single message for structural validity.
func ValidateMessage(m ChatMessage) *InvalidRequestError {
	switch m.Role {
	case RoleSystem, RoleUser:
		if len(m.ToolCalls) > 0 {
			return NewInvalidRequestError("tool_calls", "only assistant messages may carry tool calls")
		}
	case RoleAssistant:
		for _, c := range m.ToolCalls {
			if c.Function == "" {
				return NewInvalidRequestError("tool_calls", "tool call function is required")
			}
		}
	case RoleTool:
		if m.ToolCallID == "" {
			return NewInvalidRequestError("tool_call_id", "tool messages require tool_call_id")
		}
	case "":
		return NewInvalidRequestError("role", "role is required")
	default:
		return NewInvalidRequestError("role", fmt.Sprintf("invalid role %q", m.Role))
	}
	return nil
}
