package repositories

import (
	"context"

	"github.com/clipstream/backend/internal/models"
)

// VideoRepository exposes the read access needed for watch-history enrichment.
type VideoRepository interface {
	ListWatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}
