package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/observability"
	"github.com/rhuss/modelapi/pkg/tools"
)

// RunResult is the outcome of a tool loop.
type RunResult struct {
	// Messages is the full conversation: the input messages followed by
	// every assistant turn and tool result produced by the loop.
	Messages []api.ChatMessage

	// Output is the last model output.
	Output *api.ModelOutput

	// Calls holds the ModelCall of every successful turn, in order.
	Calls []*api.ModelCall

	// Usage accumulates token usage across turns.
	Usage api.ModelUsage

	// Turns is the number of model turns taken.
	Turns int

	// Incomplete is set when the loop stopped at the turn limit while the
	// model was still calling tools.
	Incomplete bool
}

// Run executes the multi-turn tool cycle. It calls Generate in a loop,
// dispatching tool calls to executors, feeding results back, and repeating
// until the model answers without calling tools, tool choice is none, or
// the turn limit is reached. A forced tool choice applies to the first
// turn only.
func (m *Model) Run(ctx context.Context, messages []api.ChatMessage, executors []tools.ToolExecutor,
	toolChoice api.ToolChoice, cfg api.GenerateConfig) (*RunResult, error) {

	infos, err := tools.Collect(ctx, executors)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Messages: append([]api.ChatMessage(nil), messages...)}
	choice := toolChoice

	for turn := 0; turn < m.cfg.maxTurns(); turn++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		out, call, err := m.Generate(ctx, result.Messages, infos, choice, cfg)
		if err != nil {
			return result, fmt.Errorf("turn %d: %w", turn+1, err)
		}
		result.Turns++
		result.Output = out
		result.Calls = append(result.Calls, call)
		if out.Usage != nil {
			result.Usage.InputTokens += out.Usage.InputTokens
			result.Usage.OutputTokens += out.Usage.OutputTokens
			result.Usage.TotalTokens += out.Usage.TotalTokens
		}

		reply := out.Message()
		result.Messages = append(result.Messages, reply)

		// No tool calls: final answer.
		if len(reply.ToolCalls) == 0 || choice.IsNone() {
			return result, nil
		}

		filtered := tools.FilterAllowedTools(reply.ToolCalls, m.cfg.AllowedTools)
		for _, rejected := range filtered.Rejected {
			observability.ToolExecutionsTotal.WithLabelValues(rejected.Function, "rejected").Inc()
		}
		executed := m.executeTools(ctx, executors, filtered.Allowed)

		// Tool results follow the assistant turn in the order the model
		// issued the calls.
		byID := make(map[string]api.ChatMessage, len(reply.ToolCalls))
		for _, msg := range append(executed, filtered.Rejected...) {
			byID[msg.ToolCallID] = msg
		}
		for _, tc := range reply.ToolCalls {
			result.Messages = append(result.Messages, byID[tc.ID])
		}

		if _, forced := choice.Forced(); forced {
			choice = api.ToolChoiceAuto
		}
	}

	result.Incomplete = true
	return result, nil
}

// executeTools runs calls sequentially, or concurrently when
// ParallelToolCalls is set. Results are returned in call order.
func (m *Model) executeTools(ctx context.Context, executors []tools.ToolExecutor, calls []api.ToolCall) []api.ChatMessage {
	results := make([]api.ChatMessage, len(calls))
	if !m.cfg.ParallelToolCalls {
		for i, tc := range calls {
			results[i] = executeOne(ctx, executors, tc)
		}
		return results
	}

	var g errgroup.Group
	for i, tc := range calls {
		g.Go(func() error {
			results[i] = executeOne(ctx, executors, tc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func executeOne(ctx context.Context, executors []tools.ToolExecutor, tc api.ToolCall) api.ChatMessage {
	if ctx.Err() != nil {
		return tools.ErrorResult(tc, tools.ErrorTypeUnavailable, "context cancelled")
	}

	exec := tools.Find(executors, tc.Function)
	if exec == nil {
		observability.ToolExecutionsTotal.WithLabelValues(tc.Function, "error").Inc()
		return tools.ErrorResult(tc, tools.ErrorTypeNotFound, "no executor found for tool "+tc.Function)
	}

	msg, err := exec.Execute(ctx, tc)
	if err != nil {
		slog.Warn("tool execution error",
			"tool", tc.Function,
			"call_id", tc.ID,
			"kind", exec.Kind().String(),
			"error", err.Error(),
		)
		observability.ToolExecutionsTotal.WithLabelValues(tc.Function, "error").Inc()
		return tools.ErrorResult(tc, tools.ErrorTypeExecution, err.Error())
	}

	status := "success"
	if msg.Error != nil {
		status = "error"
	}
	observability.ToolExecutionsTotal.WithLabelValues(tc.Function, status).Inc()
	return msg
}
