// Package rest provides the HTTP API serving the monitoring dashboard.
// This file implements HS256 JWT bearer-token authentication middleware.
//
// All requests to protected routes must include an Authorization header:
//
//	Authorization: Bearer <compact-JWT>
//
// Tokens are verified against a shared secret from the daemon configuration;
// only HS256 is accepted. On any failure the middleware responds with HTTP
// 401 and a JSON error body; it does not call the next handler.
package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is an unexported type used for context keys in this package to
// avoid collisions with keys defined in other packages.
type contextKey int

const claimsKey contextKey = 0

// ClaimsFromContext retrieves the verified claims injected by
// [JWTMiddleware]. It returns (nil, false) when no claims are present
// (unauthenticated request or middleware not in the chain).
func ClaimsFromContext(ctx context.Context) (*jwt.RegisteredClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwt.RegisteredClaims)
	return c, ok
}

// JWTMiddleware returns middleware enforcing HS256 bearer-token
// authentication with the given shared secret. On success the verified
// claims are stored in the request context and the request is forwarded.
func JWTMiddleware(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractAndValidate(r, secret)
			if err != nil {
				logger.Warn("jwt: authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("error", err.Error()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractAndValidate parses the Authorization header and verifies the token
// signature, algorithm, and time claims.
func extractAndValidate(r *http.Request, secret []byte) (*jwt.RegisteredClaims, error) {
	raw := r.Header.Get("Authorization")
	if !strings.HasPrefix(raw, "Bearer ") {
		return nil, errors.New("missing or malformed Authorization header")
	}
	tokenStr := strings.TrimPrefix(raw, "Bearer ")
	if tokenStr == "" {
		return nil, errors.New("empty bearer token")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// writeJSONError writes an HTTP error response with a JSON body.
// It sets the Content-Type header before writing the status code so that
// the header is included even when ResponseWriter buffers are flushed early.
func writeJSONError(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body := fmt.Sprintf(`{"error":%q}`, detail)
	_, _ = w.Write([]byte(body))
}
