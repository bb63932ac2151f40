// Package debug provides category-gated debug logging on top of log/slog.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): MODELAPI_DEBUG or Options.Categories
//   - Level (HOW MUCH detail): MODELAPI_LOG_LEVEL or Options.Level
//
// At TRACE, adapters dump full request and response bodies through Raw.
//
//	debug.Log(debug.Providers, "request", "url", url)
//	if debug.Enabled(debug.Engine) { /* expensive formatting */ }
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Known categories. "all" enables every category, including ad-hoc ones.
const (
	Providers = "providers"
	Hooks     = "hooks"
	Engine    = "engine"
	Storage   = "storage"
	MCP       = "mcp"
	Config    = "config"
	All       = "all"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

// Options configures Init. Non-empty MODELAPI_DEBUG, MODELAPI_LOG_LEVEL and
// MODELAPI_LOG_FORMAT override the corresponding fields.
type Options struct {
	Categories string // comma-separated
	Level      string // TRACE, DEBUG, INFO, WARN or ERROR
	Format     string // "text" (default) or "json"
	Output     io.Writer
}

type state struct {
	categories map[string]bool
	out        io.Writer
}

var current atomic.Pointer[state]

func init() {
	current.Store(&state{categories: parseCategories(os.Getenv("MODELAPI_DEBUG")), out: os.Stderr})
}

// Init configures categories and installs the default slog handler. It is
// safe to call while other goroutines log.
func Init(opts Options) {
	cats := envOr("MODELAPI_DEBUG", opts.Categories)
	level := ParseLevel(envOr("MODELAPI_LOG_LEVEL", opts.Level))
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: traceLevelName}
	var handler slog.Handler
	if strings.EqualFold(envOr("MODELAPI_LOG_FORMAT", opts.Format), "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
	current.Store(&state{categories: parseCategories(cats), out: out})
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	c := current.Load().categories
	return c[All] || c[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// Raw writes text unformatted to the log output, for copy-paste-ready
// HTTP bodies. Only emitted at TRACE for an enabled category.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(current.Load().out, text)
}

// ParseLevel converts a level name to a slog.Level. Unknown names mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories, sorted.
func Categories() []string {
	c := current.Load().categories
	result := make([]string, 0, len(c))
	for k := range c {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Body renders a request or response body for log output, truncated
// unless TRACE is enabled for the category.
func Body(category string, body []byte) string {
	if TraceIsEnabled(category) {
		return string(body)
	}
	return Truncate(string(body), 256)
}

// Truncate shortens s to at most maxLen bytes without splitting a UTF-8
// sequence, appending "..." when it cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.TrimSpace(strings.ToLower(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// traceLevelName prints LevelTrace as "TRACE" instead of "DEBUG-4".
func traceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}
