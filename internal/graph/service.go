package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

var (
	// ErrHandleRequired indicates a channel lookup without a handle.
	ErrHandleRequired = errors.New("handle is required")
	// ErrChannelNotFound indicates no user owns the requested handle.
	ErrChannelNotFound = errors.New("channel not found")
)

// UserDirectory resolves graph node identities.
type UserDirectory interface {
	FindByHandle(ctx context.Context, handle string) (models.User, error)
}

// Service answers read-only queries over the subscription graph. It never
// mutates users, edges or videos.
type Service struct {
	users  UserDirectory
	subs   repositories.SubscriptionRepository
	videos repositories.VideoRepository
}

// NewService constructs the aggregator.
func NewService(users UserDirectory, subs repositories.SubscriptionRepository, videos repositories.VideoRepository) *Service {
	return &Service{users: users, subs: subs, videos: videos}
}

// ChannelProfile builds the public read model for a channel page. viewerID
// may be empty for anonymous callers, in which case isSubscribed is false.
func (s *Service) ChannelProfile(ctx context.Context, viewerID, handle string) (models.ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "graph.channel_profile")
	defer span.End()

	handle = accounts.NormalizeHandle(handle)
	if handle == "" {
		return models.ChannelProfile{}, ErrHandleRequired
	}

	channel, err := s.users.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ChannelProfile{}, ErrChannelNotFound
		}
		return models.ChannelProfile{}, fmt.Errorf("resolve channel %q: %w", handle, err)
	}

	stats, err := s.subs.Stats(ctx, channel.ID, viewerID)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("channel stats for %q: %w", handle, err)
	}

	return models.ChannelProfile{
		Handle:            channel.Handle,
		DisplayName:       channel.DisplayName,
		Email:             channel.Email,
		AvatarURL:         channel.AvatarURL,
		CoverURL:          channel.CoverURL,
		SubscribersCount:  stats.Subscribers,
		SubscribedToCount: stats.SubscribedTo,
		Subscribed:        stats.Subscribed,
		CreatedAt:         channel.CreatedAt,
	}, nil
}

// WatchHistory resolves the user's ordered video references into enriched
// records. An empty history yields an empty slice, never an error.
func (s *Service) WatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error) {
	ctx, span := logging.StartSpan(ctx, "graph.watch_history")
	defer span.End()

	entries, err := s.videos.ListWatchHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list watch history: %w", err)
	}
	if entries == nil {
		entries = []models.WatchHistoryEntry{}
	}
	return entries, nil
}
