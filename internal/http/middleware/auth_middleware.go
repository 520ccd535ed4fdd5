package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/campusmarket/accountkit/internal/http/response"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/security"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// APIKey rejects requests whose apikey header (or query parameter) does not
// match key.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("apikey")
			if got == "" {
				got = r.URL.Query().Get("apikey")
			}
			if got == "" {
				response.Error(w, r, http.StatusUnauthorized, "no_api_key", "No API key found in request")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				response.Error(w, r, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware requires a valid access token.
func AuthMiddleware(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, identity.CodeBadJWT, "This endpoint requires a Bearer token")
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, identity.CodeBadJWT, "invalid JWT: unable to parse or verify signature")
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches claims when the bearer is an access token. The anon
// key, or no bearer at all, passes through as an anonymous request.
func OptionalAuth(jwtMgr *security.JWTManager, anonKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" || raw == anonKey {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				response.RestError(w, r, &identity.Error{Status: http.StatusUnauthorized, Code: identity.CodeBadJWT, Message: "JWT expired or invalid"})
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

// SubjectFromContext returns the identity id of the caller, or "".
func SubjectFromContext(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Subject
	}
	return ""
}
