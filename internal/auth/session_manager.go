package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

var (
	// ErrTokenMismatch indicates the presented refresh token is no longer the
	// active one for the user: it was rotated, revoked, or lost a concurrent
	// rotation race.
	ErrTokenMismatch = errors.New("refresh token expired or used")
	// ErrUnknownUser indicates the token decoded to a user that does not exist.
	ErrUnknownUser = errors.New("no user for refresh token")
)

// SessionUserStore is the persistence surface the session manager needs. Swap
// must replace the stored refresh token only when the previous value still
// matches, as a single conditional update.
type SessionUserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetRefreshToken(ctx context.Context, userID, token string) error
	SwapRefreshToken(ctx context.Context, userID, previous, next string) error
}

// SessionManager owns the access/refresh token lifecycle. One refresh token is
// active per user at any time; issuing overwrites it, rotation is use-once.
type SessionManager struct {
	codec *TokenCodec
	users SessionUserStore
}

// NewSessionManager constructs a manager backed by the provided codec and store.
func NewSessionManager(codec *TokenCodec, users SessionUserStore) *SessionManager {
	if codec == nil {
		panic("auth: token codec must not be nil")
	}
	if users == nil {
		panic("auth: user store must not be nil")
	}
	return &SessionManager{codec: codec, users: users}
}

// Issue creates a fresh token pair for the user and persists the refresh
// token, invalidating any previously issued one.
func (m *SessionManager) Issue(ctx context.Context, user models.User) (models.SessionTokens, error) {
	if user.ID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	access, accessExpires, err := m.codec.MintAccess(user)
	if err != nil {
		return models.SessionTokens{}, err
	}

	refresh, refreshExpires, err := m.codec.MintRefresh(user.ID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.users.SetRefreshToken(ctx, user.ID, refresh); err != nil {
		return models.SessionTokens{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token must
// match the stored value byte for byte, and the overwrite is conditional on
// that value so concurrent rotations cannot both succeed.
func (m *SessionManager) Rotate(ctx context.Context, presented string) (models.SessionTokens, error) {
	if presented == "" {
		return models.SessionTokens{}, ErrTokenInvalid
	}

	userID, err := m.codec.VerifyRefresh(presented)
	if err != nil {
		return models.SessionTokens{}, err
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, fmt.Errorf("%w: %v", ErrUnknownUser, err)
		}
		// A store outage is not a rejected token; let it surface as such.
		return models.SessionTokens{}, fmt.Errorf("load user for rotation: %w", err)
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		return models.SessionTokens{}, ErrTokenMismatch
	}

	access, accessExpires, err := m.codec.MintAccess(user)
	if err != nil {
		return models.SessionTokens{}, err
	}

	refresh, refreshExpires, err := m.codec.MintRefresh(user.ID)
	if err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.users.SwapRefreshToken(ctx, user.ID, presented, refresh); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Another rotation won between the read and the swap.
			return models.SessionTokens{}, fmt.Errorf("%w: %v", ErrTokenMismatch, err)
		}
		return models.SessionTokens{}, fmt.Errorf("swap refresh token: %w", err)
	}

	return models.SessionTokens{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpires,
	}, nil
}

// Revoke clears the stored refresh token; previously issued tokens can no
// longer rotate.
func (m *SessionManager) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id must be provided")
	}
	return m.users.SetRefreshToken(ctx, userID, "")
}

// Unauthorized reports whether err belongs to the family of failures that the
// boundary must collapse into a single unauthorized response.
func Unauthorized(err error) bool {
	return errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMismatch) ||
		errors.Is(err, ErrUnknownUser)
}
