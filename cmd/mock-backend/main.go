// Command mock-backend runs deterministic model backends for local testing
// of the modelapi adapters. One process serves:
//
//   - the Cloudflare Workers AI run endpoint
//     (POST /client/v4/accounts/{account}/ai/run/@cf/{model})
//   - an OpenAI-compatible Chat Completions endpoint (POST /v1/chat/completions)
//   - an MCP server with "get_time" and "echo" tools on /mcp
//   - Prometheus metrics on /metrics
//
// The last user message steers the reply. A message starting with
// "fail:rate", "fail:500" or "fail:400" produces that failure on every
// request; "flaky:" fails the first request for a given prompt with 429 and
// answers the retry normally.
//
// Configuration:
//
//	MOCK_PORT     - Listen port (default: 9090)
//	MOCK_API_KEYS - Comma-separated bearer keys; when set, other keys get 401
//	MOCK_RPM      - Requests per minute allowed per key; over-limit requests
//	                get 429 with Retry-After (default: 0, unlimited)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/modelapi/pkg/auth"
	"github.com/rhuss/modelapi/pkg/auth/apikey"
	"github.com/rhuss/modelapi/pkg/observability"
	"github.com/rhuss/modelapi/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mock backend failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	sc := serverConfig{}
	if keys := os.Getenv("MOCK_API_KEYS"); keys != "" {
		sc.apiKeys = strings.Split(keys, ",")
	}
	if v := os.Getenv("MOCK_RPM"); v != "" {
		rpm, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MOCK_RPM: %w", err)
		}
		sc.rpm = rpm
	}

	srv := &http.Server{Addr: ":" + port, Handler: newHandler(newBackend(), sc)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("mock backend shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// serverConfig controls inbound authentication and rate limiting.
type serverConfig struct {
	apiKeys []string
	rpm     int
}

// newHandler wires every route, each wrapped with request metrics, behind
// the shared request ID, logging, recovery and auth middleware.
func newHandler(b *backend, sc serverConfig) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /client/v4/accounts/{account}/ai/run/@cf/{model...}",
		observability.MetricsMiddleware("cloudflare_run", http.HandlerFunc(b.handleCloudflareRun)))
	mux.Handle("POST /v1/chat/completions",
		observability.MetricsMiddleware("chat_completions", http.HandlerFunc(b.handleChatCompletions)))
	mux.Handle("GET /v1/models",
		observability.MetricsMiddleware("models", http.HandlerFunc(handleModels)))
	mux.Handle("/mcp", observability.MetricsMiddleware("mcp", newMCPHandler()))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	return transport.Chain(
		transport.RequestID(),
		transport.Logging(nil),
		transport.Recovery(),
		authMiddleware(sc),
	)(mux)
}

func authMiddleware(sc serverConfig) transport.Middleware {
	chain := &auth.Chain{Default: auth.Yes}
	if len(sc.apiKeys) > 0 {
		keys := make(map[string]auth.Identity, len(sc.apiKeys))
		for i, key := range sc.apiKeys {
			keys[strings.TrimSpace(key)] = auth.Identity{Subject: fmt.Sprintf("key-%d", i+1)}
		}
		chain = &auth.Chain{Authenticators: []auth.Authenticator{apikey.New(keys)}, Default: auth.No}
	}

	var limiter auth.RateLimiter
	if sc.rpm > 0 {
		limiter = auth.NewInProcessLimiter(nil, sc.rpm)
	}
	return auth.Middleware(chain, limiter, []string{"/healthz", "/metrics", "/mcp", "/v1/models"})
}
