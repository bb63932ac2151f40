package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rhuss/modelapi/pkg/transport"
)

// MetricsMiddleware counts requests to next and observes their latency
// under the given route label. Status codes are bucketed by class.
func MetricsMiddleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := transport.RecordStatus(w)
		next.ServeHTTP(rec, r)

		RequestsTotal.WithLabelValues(r.Method, statusClass(rec.Status()), route).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
