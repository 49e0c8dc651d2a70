package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// surface names the API family a path belongs to so wallet, partner and
// provider traffic can be told apart in logs.
func surface(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/wallet"), strings.HasPrefix(path, "/api/v1/transactions"):
		return "wallet"
	case strings.HasPrefix(path, "/api/v1/integrations"):
		return "integration"
	case strings.HasPrefix(path, "/api/v1/payments"):
		return "payment"
	case strings.HasPrefix(path, "/webhooks/"):
		return "webhook"
	default:
		return "other"
	}
}

// Logging installs a request logger carrying request_id and surface and logs
// one line per completed request. Health probes and metric scrapes are skipped.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/ready" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		logger := slog.Default().With(
			"request_id", TraceIDFromContext(r.Context()),
			"surface", surface(r.URL.Path),
		)
		ctx := logging.WithLogger(r.Context(), logger)
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			attrs = append(attrs, "idempotency_key", key)
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Warn("request failed", attrs...)
			return
		}
		logger.Info("request completed", attrs...)
	})
}
