// Package middleware provides HTTP middleware for authentication, CORS
// handling, rate limiting, and request context management.
package middleware

import (
	"net/http"
	"strings"

	"github.com/shopfeed/backend/internal/auth"
	"github.com/shopfeed/backend/internal/logging"
)

// AuthMiddleware resolves the bearer token and adds the identity to the
// request context. Returns 401 for missing or invalid tokens.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logging.LogSecurityEvent(r.Context(), logging.SecurityEventMissingAuth, "missing authorization header")
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				logging.LogSecurityEvent(r.Context(), logging.SecurityEventInvalidAuthFmt, "invalid authorization header format")
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			identity, ok := authenticator.Resolve(r.Context(), token)
			if !ok {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			ctx = logging.UpdateRequestAttrs(ctx, identity.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SocketCredentials resolves an optional token for WebSocket upgrades.
// Browsers cannot set headers on a WebSocket handshake, so the token query
// parameter is read first, then the Authorization header. The request always
// proceeds; handlers that need an identity reject it themselves.
func SocketCredentials(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if token == "" {
				token, _ = bearerToken(r.Header.Get("Authorization"))
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, ok := authenticator.Resolve(r.Context(), token)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			ctx = logging.UpdateRequestAttrs(ctx, identity.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
