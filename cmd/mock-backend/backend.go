package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// failure is an injected error response.
type failure struct {
	status     int
	message    string
	retryAfter string
}

// backend holds the state shared by the model endpoints.
type backend struct {
	mu    sync.Mutex
	flaky map[string]bool
}

func newBackend() *backend {
	return &backend{flaky: make(map[string]bool)}
}

// injectedFailure returns the failure requested by prompt, if any.
func (b *backend) injectedFailure(prompt string) *failure {
	switch {
	case strings.HasPrefix(prompt, "fail:rate"):
		return &failure{status: http.StatusTooManyRequests, message: "rate limit exceeded", retryAfter: "1"}
	case strings.HasPrefix(prompt, "fail:500"):
		return &failure{status: http.StatusInternalServerError, message: "internal server error"}
	case strings.HasPrefix(prompt, "fail:400"):
		return &failure{status: http.StatusBadRequest, message: "invalid request"}
	case strings.HasPrefix(prompt, "flaky:"):
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.flaky[prompt] {
			b.flaky[prompt] = true
			return &failure{status: http.StatusTooManyRequests, message: "rate limit exceeded", retryAfter: "0"}
		}
	}
	return nil
}

// reply picks the assistant text for a conversation.
func reply(messages []chatMessage) string {
	if last := len(messages) - 1; last >= 0 && messages[last].Role == "tool" {
		return "The tool returned: " + contentText(messages[last].Content)
	}
	prompt := strings.ToLower(lastUserMessage(messages))
	switch {
	case strings.Contains(prompt, "count from 1 to 5"):
		return "1, 2, 3, 4, 5"
	case strings.TrimPrefix(prompt, "flaky:") != prompt:
		return "Recovered after retry."
	case hasRole(messages, "system"):
		return "Ahoy there, matey! Welcome aboard!"
	}
	return "Hello, nice day!"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

func lastUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return contentText(messages[i].Content)
		}
	}
	return ""
}

// contentText flattens string or content-part message bodies.
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, part := range v {
			if m, ok := part.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func hasRole(messages []chatMessage, role string) bool {
	for _, msg := range messages {
		if msg.Role == role {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
