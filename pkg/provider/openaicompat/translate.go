package openaicompat

import (
	"encoding/json"

	"github.com/rhuss/modelapi/pkg/api"
)

// TranslateToChat converts canonical generate inputs into a
// WireRequest suitable for the /v1/chat/completions endpoint.
func TranslateToChat(model string, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) WireRequest {
	cr := WireRequest{
		Model:            model,
		Temperature:      cfg.Temperature,
		TopP:             cfg.TopP,
		TopK:             cfg.TopK,
		MaxTokens:        cfg.MaxTokens,
		Stop:             cfg.StopSeqs,
		Seed:             cfg.Seed,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
		N:                1,
	}

	// Translate messages.
	for _, m := range messages {
		cm := WireMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		switch m.Role {
		case api.RoleTool:
			cm.Content = m.Text()
			cm.ToolCallID = m.ToolCallID
			cm.Name = m.Function
		case api.RoleAssistant:
			if len(m.ToolCalls) > 0 && m.Content == "" {
				cm.Content = nil
			}
			for _, tc := range m.ToolCalls {
				cm.ToolCalls = append(cm.ToolCalls, WireToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: WireFunctionCall{
						Name:      tc.Function,
						Arguments: tc.ArgumentsJSON(),
					},
				})
			}
		}
		cr.Messages = append(cr.Messages, cm)
	}

	// Tools are omitted entirely when tool use is disabled.
	if len(tools) == 0 || toolChoice.IsNone() {
		return cr
	}
	for _, t := range tools {
		cr.Tools = append(cr.Tools, WireTool{
			Type: "function",
			Function: WireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	// The WireRequest uses `any` for ToolChoice, which allows both
	// string and structured values.
	if name, ok := toolChoice.Forced(); ok {
		cr.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]string{"name": name},
		}
	} else {
		cr.ToolChoice = "auto"
	}

	return cr
}

// EncodeRequest marshals req and merges extra arguments underneath it.
// Fields set on req take precedence over extra entries with the same key.
func EncodeRequest(req WireRequest, extra map[string]any) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil || len(extra) == 0 {
		return body, err
	}
	var merged map[string]any
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, set := merged[k]; !set {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
