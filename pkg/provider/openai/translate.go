package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/provider/chatapi"
	"github.com/rhuss/modelapi/pkg/provider/openaicompat"
)

// buildParams converts messages, tools and options into SDK parameters.
// top_k is not part of the OpenAI API and is dropped.
func buildParams(model string, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (sdk.ChatCompletionNewParams, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    model,
		Messages: translateMessages(messages),
	}

	if cfg.MaxTokens != nil {
		params.MaxCompletionTokens = sdk.Int(int64(*cfg.MaxTokens))
	}
	if cfg.Temperature != nil {
		params.Temperature = sdk.Float(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		params.TopP = sdk.Float(*cfg.TopP)
	}
	if cfg.Seed != nil {
		params.Seed = sdk.Int(int64(*cfg.Seed))
	}
	if cfg.FrequencyPenalty != nil {
		params.FrequencyPenalty = sdk.Float(*cfg.FrequencyPenalty)
	}
	if cfg.PresencePenalty != nil {
		params.PresencePenalty = sdk.Float(*cfg.PresencePenalty)
	}
	if len(cfg.StopSeqs) > 0 {
		params.Stop = sdk.ChatCompletionNewParamsStopUnion{OfStringArray: cfg.StopSeqs}
	}

	// A "none" choice omits the tools entirely.
	if len(tools) == 0 || toolChoice.IsNone() {
		return params, nil
	}
	for _, tool := range tools {
		schema, err := toolParameters(tool)
		if err != nil {
			return params, err
		}
		fn := sdk.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: schema,
		}
		if tool.Description != "" {
			fn.Description = sdk.String(tool.Description)
		}
		params.Tools = append(params.Tools, sdk.ChatCompletionToolParam{Function: fn})
	}
	if name, ok := toolChoice.Forced(); ok {
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &sdk.ChatCompletionNamedToolChoiceParam{
				Function: sdk.ChatCompletionNamedToolChoiceFunctionParam{Name: name},
			},
		}
	} else {
		params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: sdk.String("auto")}
	}
	return params, nil
}

func toolParameters(tool api.ToolInfo) (map[string]any, error) {
	if len(tool.Parameters) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	var schema map[string]any
	if err := json.Unmarshal(tool.Parameters, &schema); err != nil {
		return nil, fmt.Errorf("tool %q: invalid parameters: %w", tool.Name, err)
	}
	return schema, nil
}

func translateMessages(messages []api.ChatMessage) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case api.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case api.RoleUser:
			out = append(out, sdk.UserMessage(m.Content))
		case api.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, sdk.AssistantMessage(m.Content))
				continue
			}
			assistant := &sdk.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				assistant.Content = sdk.ChatCompletionAssistantMessageParamContentUnion{OfString: sdk.String(m.Content)}
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, sdk.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: sdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function,
						Arguments: tc.ArgumentsJSON(),
					},
				})
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case api.RoleTool:
			out = append(out, sdk.ToolMessage(m.Text(), m.ToolCallID))
		}
	}
	return out
}

// auditBody returns the JSON body as sent, with args merged in, and the
// subset of args that must be set on the request. Request fields win over
// args with the same key.
func auditBody(params sdk.ChatCompletionNewParams, args map[string]any) ([]byte, map[string]any, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, nil, err
	}
	if len(args) == 0 {
		return data, nil, nil
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, nil, err
	}
	extra := make(map[string]any, len(args))
	for k, v := range args {
		if _, ok := body[k]; ok {
			continue
		}
		body[k] = v
		extra[k] = v
	}
	data, err = json.Marshal(body)
	return data, extra, err
}

func translateResponse(resp *sdk.ChatCompletion, tools []api.ToolInfo) (*api.ModelOutput, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("response has no choices")
	}
	out := &api.ModelOutput{Model: resp.Model}
	if u := resp.Usage; u.TotalTokens > 0 || u.PromptTokens > 0 {
		out.Usage = &api.ModelUsage{
			InputTokens:  int(u.PromptTokens),
			OutputTokens: int(u.CompletionTokens),
			TotalTokens:  int(u.TotalTokens),
		}
	}
	for _, choice := range resp.Choices {
		stop := openaicompat.MapFinishReason(choice.FinishReason)
		content := choice.Message.Content
		if content == "" && choice.Message.Refusal != "" {
			content = choice.Message.Refusal
			stop = api.StopReasonContentFilter
		}
		msg := api.AssistantMessage(content)
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls,
				chatapi.ParseToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments, tools))
		}
		out.Choices = append(out.Choices, api.ChatCompletionChoice{Message: msg, StopReason: stop})
	}
	return out, nil
}
