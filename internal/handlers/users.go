package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
)

// UserHandler serves the authenticated caller's own profile endpoints.
type UserHandler struct {
	Accounts AccountService
	Media    MediaStore
}

// Me handles GET and PATCH /api/v1/users/me requests.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.current(w, r)
	case http.MethodPatch:
		h.updateProfile(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h UserHandler) current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := CurrentUserID(ctx)

	user, err := h.Accounts.Get(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, "user fetched successfully", map[string]any{"user": user.Public()})
}

func (h UserHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := CurrentUserID(ctx)

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid request body"})
		return
	}

	user, err := h.Accounts.UpdateProfile(ctx, userID, req.DisplayName, req.Email)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, "account details updated successfully", map[string]any{"user": user.Public()})
}

// UpdateAvatar handles PATCH /api/v1/users/me/avatar requests.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "avatar", "avatars", h.Accounts.SetAvatar)
}

// UpdateCover handles PATCH /api/v1/users/me/cover requests.
func (h UserHandler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.updateMedia(w, r, "coverImage", "covers", h.Accounts.SetCover)
}

func (h UserHandler) updateMedia(w http.ResponseWriter, r *http.Request, field, prefix string,
	apply func(ctx context.Context, id, ref string) (models.User, error)) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID, _ := CurrentUserID(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: "invalid multipart body"})
		return
	}

	ref, err := storeUpload(r, h.Media, field, prefix)
	if err != nil {
		logging.FromContext(ctx).Warn("media upload failed", "field", field, "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, apiResponse{Success: false, Message: field + " file is missing"})
		return
	}

	user, err := apply(ctx, userID, ref)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondData(ctx, w, http.StatusOK, field+" updated successfully", map[string]any{"user": user.Public()})
}

type updateProfileRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}
