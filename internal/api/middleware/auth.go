// Package middleware carries the HTTP auth plumbing: token extraction,
// claims injection and role gating.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/eventshop/internal/apperr"
	"github.com/example/eventshop/internal/auth"
)

type contextKey string

const userContextKey contextKey = "user"

// ExtractToken pulls the access token from the cookie (browsers) or the
// Authorization header (API clients), in that order.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// RequireAuth rejects requests without a valid access token and stores the
// claims in the request context.
func RequireAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				writeError(w, apperr.New(apperr.CodeInvalidToken, "missing access token"))
				return
			}

			claims, err := jwtService.ValidateAccessToken(tokenString)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth injects claims when a valid token is present but never
// rejects. Catalog endpoints use it so logged-in and anonymous browsing
// share one handler.
func OptionalAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := ExtractToken(r); tokenString != "" {
				if claims, err := jwtService.ValidateAccessToken(tokenString); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), userContextKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a handler on the authenticated role. It must run inside
// RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, apperr.New(apperr.CodeInvalidToken, "missing access token"))
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, apperr.New(apperr.CodeForbidden, "insufficient permissions"))
		})
	}
}

// GetUserFromContext retrieves the validated claims, if any.
func GetUserFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(userContextKey).(*auth.Claims)
	return claims, ok
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	claims, ok := GetUserFromContext(ctx)
	if !ok {
		return ""
	}
	return claims.UserID
}

// writeError mirrors the api package's envelope. The duplication avoids an
// import cycle between middleware and its host package.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperr.Error)
	if !ok {
		appErr = apperr.New(apperr.CodeInternal, "internal server error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.StatusOf(appErr))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
