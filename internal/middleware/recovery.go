package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/wallet-ledger/internal/handler"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

// Recovery turns a handler panic into a 500 envelope. The ledger transaction
// of the panicking request is rolled back by its deferred Rollback, so the
// idempotency key is logged for the operator to confirm a retry is safe.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				log := logging.FromContext(r.Context())
				log.Error("panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"idempotency_key", r.Header.Get("Idempotency-Key"),
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
