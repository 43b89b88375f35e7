package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

var (
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrHandleTaken indicates the handle is already claimed.
	ErrHandleTaken = errors.New("handle already taken")
	// ErrNoAccount indicates no account matches the identifier.
	ErrNoAccount = errors.New("no matching account")
	// ErrBadCredentials indicates the password did not match the stored hash.
	ErrBadCredentials = errors.New("invalid credentials")
)

// UserStore is the persistence surface the credential store needs. Mutations
// are narrow: only password updates touch the hash.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByHandle(ctx context.Context, handle string) (models.User, error)
	UpdateProfile(ctx context.Context, id, displayName, email string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateAvatar(ctx context.Context, id, avatarURL string, at time.Time) error
	UpdateCover(ctx context.Context, id, coverURL string, at time.Time) error
}

// MediaDeleter removes a previously stored media object. Failures are logged,
// never propagated.
type MediaDeleter interface {
	Delete(ctx context.Context, ref string) error
}

// RegisterParams carries the inputs for account creation. Avatar and cover
// refs are already stored media locations.
type RegisterParams struct {
	Handle      string
	Email       string
	DisplayName string
	Password    string
	AvatarRef   string
	CoverRef    string
}

// Service owns identity records and password verification.
type Service struct {
	users UserStore
	media MediaDeleter
	now   func() time.Time
}

// NewService constructs the credential store service.
func NewService(users UserStore, media MediaDeleter) *Service {
	if users == nil {
		panic("accounts: user store must not be nil")
	}
	return &Service{users: users, media: media, now: func() time.Time { return time.Now().UTC() }}
}

// Register validates, hashes and persists a new account. Handle and email are
// lower-cased before the uniqueness checks so casing cannot bypass them.
func (s *Service) Register(ctx context.Context, params RegisterParams) (models.User, error) {
	handle := NormalizeHandle(params.Handle)
	email := strings.ToLower(strings.TrimSpace(params.Email))

	if err := validateHandle(handle); err != nil {
		return models.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}
	if err := validateDisplayName(params.DisplayName); err != nil {
		return models.User{}, err
	}
	if err := validatePassword(params.Password); err != nil {
		return models.User{}, err
	}
	if strings.TrimSpace(params.AvatarRef) == "" {
		return models.User{}, ErrAvatarRequired
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, fmt.Errorf("check email uniqueness: %w", err)
	}
	if _, err := s.users.FindByHandle(ctx, handle); err == nil {
		return models.User{}, ErrHandleTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, fmt.Errorf("check handle uniqueness: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:           uuid.NewString(),
		Handle:       handle,
		Email:        email,
		DisplayName:  strings.TrimSpace(params.DisplayName),
		PasswordHash: string(hashed),
		AvatarURL:    params.AvatarRef,
		CoverURL:     params.CoverRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// The pre-checks raced another registration; report whichever key
			// actually exists now.
			if _, handleErr := s.users.FindByHandle(ctx, handle); handleErr == nil {
				return models.User{}, ErrHandleTaken
			}
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Verify checks a password against the account matching the identifier, which
// may be a handle or an email address.
func (s *Service) Verify(ctx context.Context, identifier, password string) (models.User, error) {
	identifier = NormalizeHandle(identifier)
	if identifier == "" || password == "" {
		return models.User{}, ErrBadCredentials
	}

	var (
		user models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.FindByEmail(ctx, identifier)
	} else {
		user, err = s.users.FindByHandle(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, ErrNoAccount
		}
		return models.User{}, fmt.Errorf("look up account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrBadCredentials
	}

	return user, nil
}

// Get returns the account for the provided id.
func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, ErrNoAccount
		}
		return models.User{}, err
	}
	return user, nil
}

// UpdateProfile changes display name and email. The password hash is never
// recomputed here.
func (s *Service) UpdateProfile(ctx context.Context, id, displayName, email string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateDisplayName(displayName); err != nil {
		return models.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}

	if existing, err := s.users.FindByEmail(ctx, email); err == nil && existing.ID != id {
		return models.User{}, ErrEmailTaken
	} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, fmt.Errorf("check email uniqueness: %w", err)
	}

	if err := s.users.UpdateProfile(ctx, id, strings.TrimSpace(displayName), email, s.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, ErrNoAccount
		}
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}

	return s.Get(ctx, id)
}

// ChangePassword verifies the old password, enforces the strength policy and
// re-hashes. This is the only mutation that recomputes the hash.
func (s *Service) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return ErrBadCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, id, string(hashed), s.now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetAvatar stores the new avatar ref and then deletes the previous one from
// the media store. Cleanup failure never blocks the update.
func (s *Service) SetAvatar(ctx context.Context, id, ref string) (models.User, error) {
	if strings.TrimSpace(ref) == "" {
		return models.User{}, ErrAvatarRequired
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if err := s.users.UpdateAvatar(ctx, id, ref, s.now()); err != nil {
		return models.User{}, fmt.Errorf("update avatar: %w", err)
	}

	s.cleanupMedia(ctx, user.AvatarURL)

	user.AvatarURL = ref
	return user, nil
}

// SetCover stores the new cover ref and best-effort deletes the previous one.
func (s *Service) SetCover(ctx context.Context, id, ref string) (models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if err := s.users.UpdateCover(ctx, id, ref, s.now()); err != nil {
		return models.User{}, fmt.Errorf("update cover: %w", err)
	}

	s.cleanupMedia(ctx, user.CoverURL)

	user.CoverURL = ref
	return user, nil
}

func (s *Service) cleanupMedia(ctx context.Context, ref string) {
	if s.media == nil || ref == "" {
		return
	}
	if err := s.media.Delete(ctx, ref); err != nil {
		logging.FromContext(ctx).Warn("failed to delete replaced media", "ref", ref, "error", err)
	}
}
