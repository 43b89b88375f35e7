package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/logging"
)

const maxUploadBytes = 32 << 20

// AuthHandler implements registration, login and the token lifecycle
// endpoints.
type AuthHandler struct {
	Accounts AccountService
	Sessions SessionService
	Media    MediaStore
	Limiter  RateLimiter
}

// Register handles POST /api/v1/auth/register requests. The body is
// multipart: text fields plus an avatar file (required) and a cover image
// (optional).
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		respondJSON(ctx, w, http.StatusTooManyRequests, apiResponse{Success: false, Message: "too many attempts, slow down"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid multipart body"})
		return
	}

	params := accounts.RegisterParams{
		Handle:      r.FormValue("handle"),
		Email:       r.FormValue("email"),
		DisplayName: r.FormValue("displayName"),
		Password:    r.FormValue("password"),
	}

	avatarRef, err := h.storeUpload(r, "avatar", "avatars")
	if err != nil {
		logger.Warn("avatar upload failed", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: "avatar file is required"})
		return
	}
	params.AvatarRef = avatarRef

	coverRef, err := h.storeUpload(r, "coverImage", "covers")
	if err == nil {
		params.CoverRef = coverRef
	}

	user, err := h.Accounts.Register(ctx, params)
	if err != nil {
		// The uploads are orphans now; remove them without failing the request
		// any harder.
		h.discardUpload(r, avatarRef)
		h.discardUpload(r, coverRef)
		respondError(ctx, w, err)
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		logger.Error("failed to issue session after registration", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, apiResponse{Success: false, Message: "failed to create session"})
		return
	}

	setSessionCookies(w, tokens)
	respondData(ctx, w, http.StatusCreated, "user created successfully", map[string]any{
		"user":   user.Public(),
		"tokens": tokens,
	})
}

// Login handles POST /api/v1/auth/login requests. The identifier may be a
// handle or an email address.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondJSON(ctx, w, http.StatusTooManyRequests, apiResponse{Success: false, Message: "too many attempts, slow down"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
		return
	}

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(req.Handle)
	}
	if identifier == "" || req.Password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: "identifier and password are required"})
		return
	}

	user, err := h.Accounts.Verify(ctx, identifier, req.Password)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, apiResponse{Success: false, Message: "failed to create session"})
		return
	}

	setSessionCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, "logged in successfully", map[string]any{
		"user":   user.Public(),
		"tokens": tokens,
	})
}

// Refresh handles POST /api/v1/auth/refresh requests. The refresh token is
// read from the session cookie or the request body.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	presented := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = strings.TrimSpace(req.RefreshToken)
		}
	}
	if presented == "" {
		respondJSON(ctx, w, http.StatusUnauthorized, apiResponse{Success: false, Message: "refresh token is required"})
		return
	}

	tokens, err := h.Sessions.Rotate(ctx, presented)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	setSessionCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, "new access token generated successfully", map[string]any{
		"tokens": tokens,
	})
}

// Logout handles POST /api/v1/auth/logout requests for authenticated callers.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, _ := CurrentUserID(ctx)

	if err := h.Sessions.Revoke(ctx, userID); err != nil {
		respondError(ctx, w, err)
		return
	}

	clearSessionCookies(w)
	respondData(ctx, w, http.StatusOK, "logged out successfully", nil)
}

// ChangePassword handles POST /api/v1/auth/change-password requests.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, _ := CurrentUserID(ctx)

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
		return
	}

	if err := h.Accounts.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, "password changed successfully", nil)
}

// storeUpload persists a multipart file under the given prefix and returns
// the media ref.
func (h AuthHandler) storeUpload(r *http.Request, field, prefix string) (string, error) {
	return storeUpload(r, h.Media, field, prefix)
}

func (h AuthHandler) discardUpload(r *http.Request, ref string) {
	if h.Media == nil || ref == "" {
		return
	}
	if err := h.Media.Delete(r.Context(), ref); err != nil {
		logging.FromContext(r.Context()).Warn("failed to remove orphaned upload", "ref", ref, "error", err)
	}
}

func storeUpload(r *http.Request, media MediaStore, field, prefix string) (string, error) {
	if media == nil {
		return "", fmt.Errorf("media store unavailable")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	name := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), path.Ext(header.Filename))
	return media.Save(r.Context(), name, file)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Handle     string `json:"handle"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
