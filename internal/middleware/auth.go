package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/wallet-ledger/internal/auth"
	"github.com/josh-kwaku/wallet-ledger/internal/handler"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

const apiKeyHeader = "X-API-KEY"

// Auth resolves the bearer token to the wallet the caller acts as.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Debug("token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithAccountID(r.Context(), claims.AccountID)
			ctx = logging.With(ctx, "account_id", claims.AccountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKey guards partner routes with a shared key checked against its bcrypt
// hash. An empty hash rejects every request.
func APIKey(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.VerifyAPIKey(hash, r.Header.Get(apiKeyHeader)); err != nil {
				logging.FromContext(r.Context()).Warn("api key rejected", "path", r.URL.Path)
				handler.RespondAppError(w, handler.ErrInvalidAPIKey, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
