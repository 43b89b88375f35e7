package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

type stubAccounts struct {
	user models.User
	err  error

	registered  *accounts.RegisterParams
	verifiedAs  string
	oldPassword string
	newPassword string
}

func (s *stubAccounts) Register(_ context.Context, params accounts.RegisterParams) (models.User, error) {
	s.registered = &params
	return s.user, s.err
}

func (s *stubAccounts) Verify(_ context.Context, identifier, _ string) (models.User, error) {
	s.verifiedAs = identifier
	return s.user, s.err
}

func (s *stubAccounts) Get(_ context.Context, _ string) (models.User, error) {
	return s.user, s.err
}

func (s *stubAccounts) UpdateProfile(_ context.Context, _, displayName, email string) (models.User, error) {
	if s.err != nil {
		return models.User{}, s.err
	}
	updated := s.user
	updated.DisplayName = displayName
	updated.Email = email
	return updated, nil
}

func (s *stubAccounts) ChangePassword(_ context.Context, _, oldPassword, newPassword string) error {
	s.oldPassword = oldPassword
	s.newPassword = newPassword
	return s.err
}

func (s *stubAccounts) SetAvatar(_ context.Context, _, ref string) (models.User, error) {
	if s.err != nil {
		return models.User{}, s.err
	}
	updated := s.user
	updated.AvatarURL = ref
	return updated, nil
}

func (s *stubAccounts) SetCover(_ context.Context, _, ref string) (models.User, error) {
	if s.err != nil {
		return models.User{}, s.err
	}
	updated := s.user
	updated.CoverURL = ref
	return updated, nil
}

type fakeMedia struct {
	saved   []string
	deleted []string
	saveErr error
}

func (m *fakeMedia) Save(_ context.Context, name string, _ io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	ref := "https://cdn.test/" + name
	m.saved = append(m.saved, ref)
	return ref, nil
}

func (m *fakeMedia) Delete(_ context.Context, ref string) error {
	m.deleted = append(m.deleted, ref)
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		User   models.PublicUser    `json:"user"`
		Tokens models.SessionTokens `json:"tokens"`
	} `json:"data"`
}

func newTestSessions(store *auth.InMemoryUserStore) *auth.SessionManager {
	codec := auth.NewTokenCodec("access-secret", "refresh-secret", time.Minute, time.Hour)
	return auth.NewSessionManager(codec, store)
}

func registrationForm(t *testing.T, withAvatar bool) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"handle":      "alice",
		"email":       "alice@example.com",
		"displayName": "Alice",
		"password":    "Str0ng!pass",
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	if withAvatar {
		fw, err := mw.CreateFormFile("avatar", "avatar.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write([]byte("png-bytes")); err != nil {
			t.Fatalf("write avatar: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func sessionCookieValue(t *testing.T, rec *httptest.ResponseRecorder, name string) string {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	t.Fatalf("cookie %s not set", name)
	return ""
}

func TestAuthHandlerRegister(t *testing.T) {
	user := models.User{ID: "user-1", Handle: "alice", Email: "alice@example.com", DisplayName: "Alice"}
	store := auth.NewInMemoryUserStore()
	store.Put(user)

	accountsStub := &stubAccounts{user: user}
	media := &fakeMedia{}
	handler := AuthHandler{Accounts: accountsStub, Sessions: newTestSessions(store), Media: media}

	body, contentType := registrationForm(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp envelope
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.User.ID != "user-1" {
		t.Fatalf("expected registered user in response, got %+v", resp.Data.User)
	}
	if resp.Data.Tokens.AccessToken == "" || resp.Data.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Data.Tokens)
	}

	if accountsStub.registered == nil {
		t.Fatal("expected the account service to be called")
	}
	if accountsStub.registered.AvatarRef == "" || !strings.Contains(accountsStub.registered.AvatarRef, "avatars/") {
		t.Fatalf("expected a stored avatar ref, got %q", accountsStub.registered.AvatarRef)
	}
	if len(media.saved) != 1 {
		t.Fatalf("expected one upload, got %d", len(media.saved))
	}

	if sessionCookieValue(t, rec, accessCookieName) == "" {
		t.Fatal("expected access cookie to be set")
	}
	if sessionCookieValue(t, rec, refreshCookieName) == "" {
		t.Fatal("expected refresh cookie to be set")
	}
}

func TestAuthHandlerRegisterMissingAvatar(t *testing.T) {
	handler := AuthHandler{Accounts: &stubAccounts{}, Sessions: newTestSessions(auth.NewInMemoryUserStore()), Media: &fakeMedia{}}

	body, contentType := registrationForm(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestAuthHandlerRegisterCleansUpOrphanedUploads(t *testing.T) {
	media := &fakeMedia{}
	handler := AuthHandler{
		Accounts: &stubAccounts{err: accounts.ErrEmailTaken},
		Sessions: newTestSessions(auth.NewInMemoryUserStore()),
		Media:    media,
	}

	body, contentType := registrationForm(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
	if len(media.deleted) != 1 || media.deleted[0] != media.saved[0] {
		t.Fatalf("expected the orphaned avatar to be deleted, got %v", media.deleted)
	}
}

func TestAuthHandlerRegisterRateLimited(t *testing.T) {
	handler := AuthHandler{Accounts: &stubAccounts{}, Limiter: denyLimiter{}}

	body, contentType := registrationForm(t, true)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d got %d", http.StatusTooManyRequests, rec.Code)
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	user := models.User{ID: "user-1", Handle: "alice", Email: "alice@example.com"}
	store := auth.NewInMemoryUserStore()
	store.Put(user)

	accountsStub := &stubAccounts{user: user}
	handler := AuthHandler{Accounts: accountsStub, Sessions: newTestSessions(store)}

	body, err := json.Marshal(loginRequest{Identifier: "alice", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp envelope
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Tokens.AccessToken == "" || resp.Data.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Data.Tokens)
	}
	if accountsStub.verifiedAs != "alice" {
		t.Fatalf("expected identifier to be forwarded, got %q", accountsStub.verifiedAs)
	}
}

func TestAuthHandlerLoginFallsBackToEmailField(t *testing.T) {
	user := models.User{ID: "user-1", Email: "alice@example.com"}
	store := auth.NewInMemoryUserStore()
	store.Put(user)

	accountsStub := &stubAccounts{user: user}
	handler := AuthHandler{Accounts: accountsStub, Sessions: newTestSessions(store)}

	body, err := json.Marshal(loginRequest{Email: "alice@example.com", Password: "Str0ng!pass"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if accountsStub.verifiedAs != "alice@example.com" {
		t.Fatalf("expected email fallback, got %q", accountsStub.verifiedAs)
	}
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	handler := AuthHandler{
		Accounts: &stubAccounts{err: accounts.ErrBadCredentials},
		Sessions: newTestSessions(auth.NewInMemoryUserStore()),
	}

	body, err := json.Marshal(loginRequest{Identifier: "alice", Password: "wrong"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}

	var resp envelope
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "unauthorized" {
		t.Fatalf("expected a generic message, got %q", resp.Message)
	}
}

func TestAuthHandlerLoginMissingFields(t *testing.T) {
	handler := AuthHandler{Accounts: &stubAccounts{}, Sessions: newTestSessions(auth.NewInMemoryUserStore())}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"password":"x"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestAuthHandlerRefreshRotatesToken(t *testing.T) {
	user := models.User{ID: "user-1", Handle: "alice", Email: "alice@example.com"}
	store := auth.NewInMemoryUserStore()
	store.Put(user)

	sessions := newTestSessions(store)
	issued, err := sessions.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: sessions}

	body, err := json.Marshal(refreshRequest{RefreshToken: issued.RefreshToken})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp envelope
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Tokens.RefreshToken == issued.RefreshToken {
		t.Fatal("expected a new refresh token to be issued")
	}

	// The consumed token must not rotate a second time.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(body))
	rec = httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected replayed token to be rejected, got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshReadsCookie(t *testing.T) {
	user := models.User{ID: "user-1"}
	store := auth.NewInMemoryUserStore()
	store.Put(user)

	sessions := newTestSessions(store)
	issued, err := sessions.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: sessions}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: issued.RefreshToken})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestAuthHandlerRefreshWithoutToken(t *testing.T) {
	handler := AuthHandler{Sessions: newTestSessions(auth.NewInMemoryUserStore())}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

type outageSessions struct {
	err error
}

func (s outageSessions) Issue(context.Context, models.User) (models.SessionTokens, error) {
	return models.SessionTokens{}, s.err
}

func (s outageSessions) Rotate(context.Context, string) (models.SessionTokens, error) {
	return models.SessionTokens{}, s.err
}

func (s outageSessions) Revoke(context.Context, string) error { return s.err }

func TestAuthHandlerRefreshStoreOutage(t *testing.T) {
	handler := AuthHandler{Sessions: outageSessions{err: fmt.Errorf("load user for rotation: %w", repositories.ErrUnavailable)}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "still-valid-token"})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d got %d: %s", http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	}

	var resp envelope
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "service temporarily unavailable" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestAuthHandlerLogout(t *testing.T) {
	user := models.User{ID: "user-1"}
	store := auth.NewInMemoryUserStore()
	store.Put(user)

	sessions := newTestSessions(store)
	if _, err := sessions.Issue(context.Background(), user); err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := AuthHandler{Sessions: sessions}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(withUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge != -1 {
			t.Fatalf("expected cookie %s to be cleared, got MaxAge %d", cookie.Name, cookie.MaxAge)
		}
	}

	stored, err := store.FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if stored.RefreshToken != "" {
		t.Fatal("expected the stored refresh token to be cleared")
	}
}

func TestAuthHandlerChangePassword(t *testing.T) {
	accountsStub := &stubAccounts{}
	handler := AuthHandler{Accounts: accountsStub}

	body, err := json.Marshal(changePasswordRequest{OldPassword: "Str0ng!pass", NewPassword: "N3w!password"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/change-password", bytes.NewReader(body))
	req = req.WithContext(withUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if accountsStub.oldPassword != "Str0ng!pass" || accountsStub.newPassword != "N3w!password" {
		t.Fatal("expected both passwords to be forwarded")
	}
}

func TestAuthHandlerChangePasswordWrongOldPassword(t *testing.T) {
	handler := AuthHandler{Accounts: &stubAccounts{err: accounts.ErrBadCredentials}}

	body, err := json.Marshal(changePasswordRequest{OldPassword: "wrong", NewPassword: "N3w!password"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/change-password", bytes.NewReader(body))
	req = req.WithContext(withUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}
