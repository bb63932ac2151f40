package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/provider"
	"github.com/rhuss/modelapi/pkg/provider/chatapi"
)

// buildParams converts messages, tools and options into SDK parameters.
// System messages are lifted into the System field. Seed and the
// frequency/presence penalties have no Anthropic equivalent and are
// dropped.
func buildParams(model string, messages []api.ChatMessage, tools []api.ToolInfo,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (sdk.MessageNewParams, error) {
	maxTokens := provider.DefaultMaxTokens
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}

	system, turns := translateMessages(messages)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  turns,
		System:    system,
	}
	if cfg.Temperature != nil {
		params.Temperature = sdk.Float(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		params.TopP = sdk.Float(*cfg.TopP)
	}
	if cfg.TopK != nil {
		params.TopK = sdk.Int(int64(*cfg.TopK))
	}
	if len(cfg.StopSeqs) > 0 {
		params.StopSequences = cfg.StopSeqs
	}

	if len(tools) == 0 || toolChoice.IsNone() {
		return params, nil
	}
	for _, tool := range tools {
		schema, err := inputSchema(tool)
		if err != nil {
			return params, err
		}
		union := sdk.ToolUnionParamOfTool(schema, tool.Name)
		if tool.Description != "" {
			union.OfTool.Description = sdk.String(tool.Description)
		}
		params.Tools = append(params.Tools, union)
	}
	if name, ok := toolChoice.Forced(); ok {
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfTool: &sdk.ToolChoiceToolParam{Name: name}}
	} else {
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAuto: &sdk.ToolChoiceAutoParam{}}
	}
	return params, nil
}

func inputSchema(tool api.ToolInfo) (sdk.ToolInputSchemaParam, error) {
	schema := sdk.ToolInputSchemaParam{Type: constant.Object("object")}
	if len(tool.Parameters) == 0 {
		return schema, nil
	}
	var params map[string]any
	if err := json.Unmarshal(tool.Parameters, &params); err != nil {
		return schema, fmt.Errorf("tool %q: invalid parameters: %w", tool.Name, err)
	}
	if properties, ok := params["properties"]; ok {
		schema.Properties = properties
	}
	if required, ok := params["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema, nil
}

// translateMessages splits system text from the conversation. Tool
// results become tool_result blocks on a user turn; consecutive user
// content is merged into one turn because the API requires alternation.
func translateMessages(messages []api.ChatMessage) ([]sdk.TextBlockParam, []sdk.MessageParam) {
	var system []sdk.TextBlockParam
	var turns []sdk.MessageParam

	appendTurn := func(role sdk.MessageParamRole, blocks ...sdk.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content = append(turns[n-1].Content, blocks...)
			return
		}
		turns = append(turns, sdk.MessageParam{Role: role, Content: blocks})
	}

	for _, m := range messages {
		switch m.Role {
		case api.RoleSystem:
			if m.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Content})
			}
		case api.RoleUser:
			if m.Content != "" {
				appendTurn(sdk.MessageParamRoleUser, sdk.NewTextBlock(m.Content))
			}
		case api.RoleAssistant:
			var blocks []sdk.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Function))
			}
			appendTurn(sdk.MessageParamRoleAssistant, blocks...)
		case api.RoleTool:
			appendTurn(sdk.MessageParamRoleUser, sdk.NewToolResultBlock(m.ToolCallID, m.Text(), m.Error != nil))
		}
	}
	return system, turns
}

// auditBody mirrors the request sent: params with args added for keys
// the request does not set.
func auditBody(params sdk.MessageNewParams, args map[string]any) ([]byte, map[string]any, error) {
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

func translateResponse(msg *sdk.Message, tools []api.ToolInfo) *api.ModelOutput {
	var text strings.Builder
	var calls []api.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			tu := block.AsToolUse()
			args, _ := json.Marshal(tu.Input)
			calls = append(calls, chatapi.ParseToolCall(tu.ID, tu.Name, string(args), tools))
		}
	}

	out := &api.ModelOutput{
		Model: string(msg.Model),
		Choices: []api.ChatCompletionChoice{{
			Message:    api.AssistantMessage(text.String(), calls...),
			StopReason: mapStopReason(string(msg.StopReason)),
		}},
		Usage: &api.ModelUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
	return out
}

func mapStopReason(reason string) api.StopReason {
	switch reason {
	case "end_turn", "stop_sequence", "pause_turn":
		return api.StopReasonStop
	case "max_tokens":
		return api.StopReasonMaxTokens
	case "tool_use":
		return api.StopReasonToolCalls
	case "refusal":
		return api.StopReasonContentFilter
	default:
		return api.StopReasonUnknown
	}
}
