package handlers

import (
	"context"
	"io"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
)

// AccountService captures the credential-store operations required by the
// HTTP handlers.
type AccountService interface {
	Register(ctx context.Context, params accounts.RegisterParams) (models.User, error)
	Verify(ctx context.Context, identifier, password string) (models.User, error)
	Get(ctx context.Context, id string) (models.User, error)
	UpdateProfile(ctx context.Context, id, displayName, email string) (models.User, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
	SetAvatar(ctx context.Context, id, ref string) (models.User, error)
	SetCover(ctx context.Context, id, ref string) (models.User, error)
}

// SessionService issues, rotates and revokes authentication tokens.
type SessionService interface {
	Issue(ctx context.Context, user models.User) (models.SessionTokens, error)
	Rotate(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID string) error
}

// AccessVerifier validates inbound access tokens for the session guard.
type AccessVerifier interface {
	VerifyAccess(token string) (auth.AccessClaims, error)
}

// ProfileSource yields channel profiles.
type ProfileSource interface {
	ChannelProfile(ctx context.Context, viewerID, handle string) (models.ChannelProfile, error)
}

// ProfileInvalidator drops a viewer's cached channel profile after an edge
// change.
type ProfileInvalidator interface {
	Invalidate(viewerID, handle string)
}

// HistorySource yields enriched watch history.
type HistorySource interface {
	WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

// ChannelDirectory resolves channel handles to user records.
type ChannelDirectory interface {
	FindByHandle(ctx context.Context, handle string) (models.User, error)
}

// SubscriptionStore captures the edge mutations exposed over HTTP.
type SubscriptionStore interface {
	Create(ctx context.Context, sub models.Subscription) error
	Delete(ctx context.Context, subscriberID, channelID string) error
}

// MediaStore stores uploaded media and deletes abandoned refs.
type MediaStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}
