package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	callIDPrefix     = "call_"
	toolCallIDPrefix = "tool_"
)

var (
	callIDPattern     = regexp.MustCompile(`^call_[0-9a-f]{32}$`)
	toolCallIDPattern = regexp.MustCompile(`^tool_[0-9a-f]{32}$`)
)

// NewCallID generates an identifier for a ModelCall record.
func NewCallID() string {
	return callIDPrefix + compactUUID()
}

// NewToolCallID generates an identifier for a tool call that the backend
// did not assign one to (e.g. tool calls parsed out of plain text).
func NewToolCallID() string {
	return toolCallIDPrefix + compactUUID()
}

// ValidateCallID reports whether id has the shape produced by NewCallID.
func ValidateCallID(id string) bool {
	return callIDPattern.MatchString(id)
}

// ValidateToolCallID reports whether id has the shape produced by NewToolCallID.
func ValidateToolCallID(id string) bool {
	return toolCallIDPattern.MatchString(id)
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
