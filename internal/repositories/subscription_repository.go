package repositories

import (
	"context"

	"github.com/clipstream/backend/internal/models"
)

// ChannelStats carries the aggregate counters for a channel page, computed in
// a single read pass.
type ChannelStats struct {
	Subscribers  int64
	SubscribedTo int64
	Subscribed   bool
}

// SubscriptionRepository defines data access for subscription edges.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub models.Subscription) error
	Delete(ctx context.Context, subscriberID, channelID string) error
	Stats(ctx context.Context, channelID, viewerID string) (ChannelStats, error)
}
