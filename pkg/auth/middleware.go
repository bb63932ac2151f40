package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/rhuss/modelapi/pkg/observability"
	"github.com/rhuss/modelapi/pkg/storage"
	"github.com/rhuss/modelapi/pkg/transport"
)

// Middleware authenticates every request whose path is not in bypass,
// enforces limiter when non-nil, and stores the identity (and its tenant)
// in the request context.
func Middleware(chain *Chain, limiter RateLimiter, bypass []string) transport.Middleware {
	skip := make(map[string]bool, len(bypass))
	for _, p := range bypass {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r)
			if res.Decision != Yes || res.Identity == nil || res.Identity.Subject == "" {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"decision", res.Decision,
					"error", res.Err)
				writeError(w, http.StatusUnauthorized, "authentication_error", "authentication required")
				return
			}
			id := res.Identity

			if limiter != nil {
				if err := limiter.Allow(r.Context(), id); err != nil {
					slog.Warn("rate limit exceeded", "subject", id.Subject, "tier", tierOf(id))
					observability.RateLimitRejectedTotal.WithLabelValues(tierOf(id)).Inc()
					var limitErr *LimitError
					if errors.As(err, &limitErr) {
						w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(limitErr.RetryAfter.Seconds()))))
					}
					writeError(w, http.StatusTooManyRequests, "rate_limit_error", err.Error())
					return
				}
			}

			ctx := WithIdentity(r.Context(), id)
			if id.Tenant != "" {
				ctx = storage.WithTenant(ctx, id.Tenant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, errType, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"type": errType, "message": msg},
	})
}

func tierOf(id *Identity) string {
	if id.Tier == "" {
		return "default"
	}
	return id.Tier
}
