package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/models"
)

var (
	// ErrTokenInvalid indicates a token that is malformed or carries a bad signature.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates a token whose expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims are carried by short-lived access tokens. The subject holds the
// user id.
type AccessClaims struct {
	Email  string `json:"email"`
	Handle string `json:"handle"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by long-lived refresh tokens; only the user id.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenCodec mints and verifies the signed session credentials. Access and
// refresh tokens are signed with separate secrets so one class can never
// verify as the other.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec constructs a codec with the provided secrets and lifetimes.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	if accessSecret == "" || refreshSecret == "" {
		panic("auth: token secrets must not be empty")
	}
	if accessTTL <= 0 {
		accessTTL = 6 * time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 10 * 24 * time.Hour
	}
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// MintAccess signs an access token for the provided user.
func (c *TokenCodec) MintAccess(user models.User) (string, time.Time, error) {
	now := c.now().UTC()
	expires := now.Add(c.accessTTL)

	claims := AccessClaims{
		Email:  user.Email,
		Handle: user.Handle,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// MintRefresh signs a refresh token carrying only the user id.
func (c *TokenCodec) MintRefresh(userID string) (string, time.Time, error) {
	now := c.now().UTC()
	expires := now.Add(c.refreshTTL)

	// The jti keeps every mint unique; timestamps alone have second precision
	// and rotation depends on old and new tokens never comparing equal.
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expires, nil
}

// VerifyAccess checks signature and expiry of an access token and returns its
// claims.
func (c *TokenCodec) VerifyAccess(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := c.verify(token, &claims, c.accessSecret); err != nil {
		return AccessClaims{}, err
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry of a refresh token and returns
// the user id it was issued for.
func (c *TokenCodec) VerifyRefresh(token string) (string, error) {
	var claims RefreshClaims
	if err := c.verify(token, &claims, c.refreshSecret); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (c *TokenCodec) verify(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
