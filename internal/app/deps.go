package app

import (
	"context"

	"github.com/clipstream/backend/internal/accounts"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/config"
	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/graph"
	"github.com/clipstream/backend/internal/handlers"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	media, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	users := repositories.NewPostgresUserRepository(pool)
	subscriptions := repositories.NewPostgresSubscriptionRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)

	codec := auth.NewTokenCodec(cfg.Tokens.AccessSecret, cfg.Tokens.RefreshSecret, cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL)
	graphService := graph.NewService(users, subscriptions, videos)
	profiles := graph.NewCachingProfiles(graphService, cfg.ProfileCacheTTL)

	return handlers.Dependencies{
		Accounts:      accounts.NewService(users, media),
		Sessions:      auth.NewSessionManager(codec, users),
		Verifier:      codec,
		Profiles:      profiles,
		ProfileCache:  profiles,
		Directory:     users,
		Subscriptions: subscriptions,
		History:       graphService,
		Media:         media,
		AuthLimiter:   middleware.NewIPRateLimiter(cfg.AuthLimit.Requests, cfg.AuthLimit.Window, cfg.AuthLimit.Burst, cfg.AuthLimit.TTL),
	}, nil
}
