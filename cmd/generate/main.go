// Command generate sends one prompt through a configured provider and prints
// the completion together with the recorded ModelCall.
//
// Usage:
//
//	generate [--config modelapi.yaml] [--provider name] [--system text] [--tools] [--json] prompt...
//
// With --tools the configured MCP servers are connected and the engine runs
// the tool loop until the model answers without calling a tool.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/config"
	"github.com/rhuss/modelapi/pkg/debug"
	"github.com/rhuss/modelapi/pkg/engine"
	"github.com/rhuss/modelapi/pkg/provider/builtin"
	"github.com/rhuss/modelapi/pkg/tools"
	"github.com/rhuss/modelapi/pkg/tools/mcp"
)

type options struct {
	configPath string
	provider   string
	system     string
	useTools   bool
	jsonOut    bool
	prompt     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("generate failed", "error", err)
		os.Exit(1)
	}
}

// newRootCmd builds the generate command; positional args form the prompt.
func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "generate [flags] prompt...",
		Short:         "Send one prompt through a configured model provider",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.prompt = strings.TrimSpace(strings.Join(args, " "))
			if opts.prompt == "" {
				return errors.New("a prompt is required")
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the config file")
	flags.StringVarP(&opts.provider, "provider", "p", "", "configured provider name (default: first provider)")
	flags.StringVar(&opts.system, "system", "", "system message")
	flags.BoolVar(&opts.useTools, "tools", false, "run the tool loop with the configured MCP servers")
	flags.BoolVar(&opts.jsonOut, "json", false, "print the full result as JSON")
	return cmd
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Debug.Options())

	store, err := config.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	m, pc, err := cfg.NewModel(builtin.Registry(), opts.provider, store, engine.NewLimiters())
	if err != nil {
		return err
	}
	defer m.Close()

	var messages []api.ChatMessage
	if opts.system != "" {
		messages = append(messages, api.ChatMessage{Role: api.RoleSystem, Content: opts.system})
	}
	messages = append(messages, api.ChatMessage{Role: api.RoleUser, Content: opts.prompt})

	slog.Info("generating", "provider", pc.Name, "backend", pc.Backend, "model", pc.Model)

	if !opts.useTools {
		output, call, err := m.Generate(ctx, messages, nil, api.ToolChoiceAuto, pc.Generate)
		if err != nil {
			return err
		}
		if opts.jsonOut {
			return writeJSON(out, map[string]any{"output": output, "call": call})
		}
		printOutput(out, output, []*api.ModelCall{call})
		return nil
	}

	if len(cfg.MCP.Servers) == 0 {
		return errors.New("--tools requires at least one entry under mcp.servers")
	}
	exec, err := mcp.Connect(ctx, cfg.MCP)
	if err != nil {
		return err
	}
	defer exec.Close()

	result, err := m.Run(ctx, messages, []tools.ToolExecutor{exec}, api.ToolChoiceAuto, pc.Generate)
	if err != nil {
		return err
	}
	if opts.jsonOut {
		return writeJSON(out, result)
	}
	for _, msg := range result.Messages[len(messages):] {
		for _, tc := range msg.ToolCalls {
			fmt.Fprintf(out, "-> %s %s\n", tc.Function, tc.RawArguments)
		}
		if msg.Role == api.RoleTool {
			fmt.Fprintf(out, "<- %s: %s\n", msg.Function, debug.Truncate(msg.Text(), 200))
		}
	}
	printOutput(out, result.Output, result.Calls)
	if result.Incomplete {
		fmt.Fprintf(out, "(stopped after %d turns)\n", result.Turns)
	}
	return nil
}

func printOutput(out io.Writer, output *api.ModelOutput, calls []*api.ModelCall) {
	fmt.Fprintln(out, output.Completion())
	fmt.Fprintln(out)
	for _, call := range calls {
		if call != nil {
			fmt.Fprintf(out, "call %s: %v\n", call.ID(), call.Time())
		}
	}
	if output.Usage != nil {
		fmt.Fprintf(out, "tokens: %d in / %d out / %d total\n",
			output.Usage.InputTokens, output.Usage.OutputTokens, output.Usage.TotalTokens)
	}
	fmt.Fprintf(out, "stop: %s\n", output.StopReason())
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
