package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to 500 responses. The server continues to accept new
// requests after a panic is recovered.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := RecordStatus(w)
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					slog.Error("handler panicked",
						"panic", v,
						"path", r.URL.Path,
						"request_id", RequestIDFromContext(r.Context()))
					if rec.Written() {
						return
					}
					rec.Header().Set("Content-Type", "application/json")
					rec.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(rec).Encode(map[string]any{
						"error": map[string]string{"message": "internal server error", "type": "server_error"},
					})
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
