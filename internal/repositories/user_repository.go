package repositories

import (
	"context"
	"time"

	"github.com/clipstream/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByHandle(ctx context.Context, handle string) (models.User, error)
	UpdateProfile(ctx context.Context, id, displayName, email string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateAvatar(ctx context.Context, id, avatarURL string, at time.Time) error
	UpdateCover(ctx context.Context, id, coverURL string, at time.Time) error
	SetRefreshToken(ctx context.Context, userID, token string) error
	SwapRefreshToken(ctx context.Context, userID, previous, next string) error
}
