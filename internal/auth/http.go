// ABOUTME: HTTP middleware for bearer-token authentication
// ABOUTME: Extracts and verifies tokens, attaching the client id to the request context

package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// extractToken pulls the bearer token from the Authorization header, falling
// back to the "token" query parameter. The query form exists because the
// browser EventSource API cannot set request headers on stream connections.
func extractToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", "malformed authorization header"
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", "empty bearer token"
		}
		return token, ""
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, ""
	}

	return "", "missing authorization"
}

// HTTPAuthMiddleware returns middleware that verifies bearer tokens and
// stores the authenticated client id in the request context. Requests
// without a valid token are rejected with 401.
func HTTPAuthMiddleware(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractToken(r)
			if errMsg != "" {
				unauthorized(w, errMsg)
				return
			}

			clientID, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("token verification failed",
					"path", r.URL.Path,
					"error", err)
				switch {
				case errors.Is(err, ErrExpiredToken):
					unauthorized(w, "token expired")
				default:
					unauthorized(w, "invalid token")
				}
				return
			}

			ctx := WithClientID(r.Context(), clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
