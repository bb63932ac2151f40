package main

import (
	"encoding/json"
	"net/http"
	"strings"
)

type runRequest struct {
	Messages []chatMessage `json:"messages"`
	Prompt   string        `json:"prompt,omitempty"`
}

type runError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleCloudflareRun answers in the Workers AI envelope
// {"success":..., "result":{...}, "errors":[...]}.
func (b *backend) handleCloudflareRun(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeEnvelopeError(w, http.StatusUnauthorized, runError{Code: 10000, Message: "Authentication error"}, "")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, runError{Code: 5006, Message: "invalid JSON body"}, "")
		return
	}
	messages := req.Messages
	if len(messages) == 0 && req.Prompt != "" {
		messages = []chatMessage{{Role: "user", Content: req.Prompt}}
	}

	prompt := lastUserMessage(messages)
	if strings.HasPrefix(prompt, "fail:envelope") {
		// Workers AI reports some model failures with HTTP 200.
		writeEnvelopeError(w, http.StatusOK, runError{Code: 3040, Message: "Capacity temporarily exceeded"}, "")
		return
	}
	if f := b.injectedFailure(prompt); f != nil {
		writeEnvelopeError(w, f.status, runError{Code: f.status, Message: f.message}, f.retryAfter)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"errors":  []runError{},
		"result": map[string]any{
			"response": reply(messages),
			"usage": map[string]int{
				"prompt_tokens":     10,
				"completion_tokens": 5,
				"total_tokens":      15,
			},
		},
	})
}

func writeEnvelopeError(w http.ResponseWriter, status int, e runError, retryAfter string) {
	if retryAfter != "" {
		w.Header().Set("Retry-After", retryAfter)
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"result":  nil,
		"errors":  []runError{e},
	})
}
