package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/graph"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// apiResponse is the uniform envelope for every JSON response.
type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "message", payload.Message)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "message", payload.Message)
	}
}

func respondData(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	respondJSON(ctx, w, status, apiResponse{Success: true, Message: message, Data: data})
}

// respondError maps the error taxonomy onto HTTP statuses. The precise cause
// is logged; the serialized message never carries internal detail for
// unauthorized or server-side failures.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusForError(err)

	message := "internal error"
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusForbidden:
		message = err.Error()
	case http.StatusUnauthorized:
		message = "unauthorized"
	case http.StatusServiceUnavailable:
		message = "service temporarily unavailable"
	}

	logging.FromContext(ctx).Warn("request rejected", "status", status, "error", err)
	respondJSON(ctx, w, status, apiResponse{Success: false, Message: message})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, accounts.ErrValidation), errors.Is(err, graph.ErrHandleRequired):
		return http.StatusBadRequest
	case errors.Is(err, accounts.ErrBadCredentials), auth.Unauthorized(err):
		return http.StatusUnauthorized
	case errors.Is(err, accounts.ErrNoAccount), errors.Is(err, graph.ErrChannelNotFound), errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, accounts.ErrEmailTaken), errors.Is(err, accounts.ErrHandleTaken), errors.Is(err, repositories.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repositories.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

func setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, sessionCookie(accessCookieName, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, sessionCookie(refreshCookieName, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, sessionCookie(accessCookieName, "", time.Time{}))
	http.SetCookie(w, sessionCookie(refreshCookieName, "", time.Time{}))
}

func sessionCookie(name, value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	} else {
		cookie.MaxAge = int(time.Until(expires).Seconds())
	}
	return cookie
}
