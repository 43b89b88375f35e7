package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipstream/backend/internal/logging"
)

type ctxKey string

const userIDKey ctxKey = "userID"

func withUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// CurrentUserID returns the authenticated caller's id, if any.
func CurrentUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// SessionGuard gates protected endpoints on a valid access token. It is
// stateless and side-effect free: an expired token is rejected, never
// refreshed implicitly.
type SessionGuard struct {
	Verifier AccessVerifier
}

// Require rejects requests without a valid access token.
func (g SessionGuard) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := accessTokenFromRequest(r)
		if token == "" {
			respondJSON(ctx, w, http.StatusUnauthorized, apiResponse{Success: false, Message: "access token is missing"})
			return
		}

		claims, err := g.Verifier.VerifyAccess(token)
		if err != nil {
			// The reason (expired vs malformed) stays in the logs only.
			logging.FromContext(ctx).Warn("access token rejected", "error", err)
			respondJSON(ctx, w, http.StatusUnauthorized, apiResponse{Success: false, Message: "access token invalid or expired"})
			return
		}

		next(w, r.WithContext(withUserID(ctx, claims.Subject)))
	}
}

// Optional attaches the caller identity when a valid token is present and
// lets anonymous requests through.
func (g SessionGuard) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFromRequest(r)
		if token == "" {
			next(w, r)
			return
		}

		claims, err := g.Verifier.VerifyAccess(token)
		if err != nil {
			logging.FromContext(r.Context()).Warn("ignoring invalid access token on public endpoint", "error", err)
			next(w, r)
			return
		}

		next(w, r.WithContext(withUserID(r.Context(), claims.Subject)))
	}
}

// accessTokenFromRequest reads the access token from the session cookie or,
// failing that, from the authorization header. The cookie wins when both are
// present.
func accessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
