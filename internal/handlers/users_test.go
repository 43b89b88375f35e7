package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/models"
)

func TestUserHandlerMe(t *testing.T) {
	user := models.User{ID: "user-1", Handle: "alice", Email: "alice@example.com", PasswordHash: "secret-hash", RefreshToken: "secret-token"}
	handler := UserHandler{Accounts: &stubAccounts{user: user}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req = req.WithContext(withUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "secret-hash") || strings.Contains(body, "secret-token") {
		t.Fatal("response leaked credential material")
	}

	var resp envelope
	if err := json.NewDecoder(strings.NewReader(body)).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.User.Handle != "alice" {
		t.Fatalf("unexpected user payload: %+v", resp.Data.User)
	}
}

func TestUserHandlerUpdateProfile(t *testing.T) {
	user := models.User{ID: "user-1", Handle: "alice", DisplayName: "Alice", Email: "alice@example.com"}
	handler := UserHandler{Accounts: &stubAccounts{user: user}}

	body, err := json.Marshal(updateProfileRequest{DisplayName: "Alice B", Email: "alice.b@example.com"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", bytes.NewReader(body))
	req = req.WithContext(withUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp envelope
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.User.DisplayName != "Alice B" || resp.Data.User.Email != "alice.b@example.com" {
		t.Fatalf("unexpected user payload: %+v", resp.Data.User)
	}
}

func TestUserHandlerUpdateProfileEmailTaken(t *testing.T) {
	handler := UserHandler{Accounts: &stubAccounts{err: accounts.ErrEmailTaken}}

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me", strings.NewReader(`{"email":"taken@example.com"}`))
	req = req.WithContext(withUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func mediaForm(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, field+".png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("png-bytes")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUserHandlerUpdateAvatar(t *testing.T) {
	media := &fakeMedia{}
	handler := UserHandler{Accounts: &stubAccounts{user: models.User{ID: "user-1", Handle: "alice"}}, Media: media}

	body, contentType := mediaForm(t, "avatar")
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me/avatar", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(withUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.UpdateAvatar(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if len(media.saved) != 1 || !strings.Contains(media.saved[0], "avatars/") {
		t.Fatalf("expected an avatar upload, got %v", media.saved)
	}

	var resp envelope
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.User.AvatarURL != media.saved[0] {
		t.Fatalf("expected the new avatar ref in the response, got %q", resp.Data.User.AvatarURL)
	}
}

func TestUserHandlerUpdateCoverMissingFile(t *testing.T) {
	handler := UserHandler{Accounts: &stubAccounts{}, Media: &fakeMedia{}}

	body, contentType := mediaForm(t, "avatar")
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me/cover", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(withUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.UpdateCover(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}
