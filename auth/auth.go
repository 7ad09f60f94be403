package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/diewo77/go-crm/httpx"
)

type ctxKey string

const (
	userIDCtxKey = ctxKey("userID")
	bearerPrefix = "Bearer "
)

// UserVerifier resolves a bearer token to the id of an existing user.
// It returns false when the token is invalid or the user is gone.
type UserVerifier func(ctx context.Context, token string) (string, bool)

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDCtxKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// BearerToken returns the token carried in the Authorization header, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

// Middleware attaches the user id to the request context when the bearer
// token verifies. Requests without a valid token pass through anonymous.
func Middleware(verify UserVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := BearerToken(r); tok != "" && verify != nil {
				if uid, ok := verify(r.Context(), tok); ok {
					r = r.WithContext(WithUserID(r.Context(), uid))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns 401 JSON when no user is attached to the request.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.JSONError(w, http.StatusUnauthorized, "Could not validate credentials", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
