package chatapi

import "strings"

// HandlerRule selects a Handler for model names containing Pattern.
type HandlerRule struct {
	// Pattern is matched case-insensitively as a substring of the model name.
	Pattern string

	// New constructs the handler for a matching model.
	New func(model string) Handler
}

// DefaultRules are evaluated when a backend does not supply its own.
var DefaultRules = []HandlerRule{
	{Pattern: "llama", New: NewLlama31Handler},
}

// SelectHandler returns the handler of the first rule whose pattern occurs
// in model, or a GenericHandler when none matches.
func SelectHandler(model string, rules []HandlerRule) Handler {
	lower := strings.ToLower(model)
	for _, r := range rules {
		if r.Pattern != "" && strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.New(model)
		}
	}
	return NewGenericHandler(model)
}
