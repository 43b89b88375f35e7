package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

const userColumns = `id, handle, email, display_name, password_hash, avatar_url, cover_url, refresh_token, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	return withRetry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()

		_, err = conn.Exec(ctx, `
        INSERT INTO users (id, handle, email, display_name, password_hash, avatar_url, cover_url, refresh_token, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $9)
    `, user.ID, user.Handle, user.Email, user.DisplayName, user.PasswordHash, user.AvatarURL, user.CoverURL, user.CreatedAt, user.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrConflict
			}
			return fmt.Errorf("insert user: %w", err)
		}

		return nil
	})
}

// FindByID fetches a user by its identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findBy(ctx, "id", id)
}

// FindByEmail fetches a user by email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findBy(ctx, "email", email)
}

// FindByHandle fetches a user by handle.
func (r *PostgresUserRepository) FindByHandle(ctx context.Context, handle string) (models.User, error) {
	return r.findBy(ctx, "handle", handle)
}

func (r *PostgresUserRepository) findBy(ctx context.Context, column, value string) (models.User, error) {
	var user models.User
	err := withRetry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()

		row := conn.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column), value)
		if err := row.Scan(&user.ID, &user.Handle, &user.Email, &user.DisplayName, &user.PasswordHash,
			&user.AvatarURL, &user.CoverURL, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("select user by %s: %w", column, err)
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// UpdateProfile changes display name and email without touching credentials.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, id, displayName, email string, at time.Time) error {
	return r.update(ctx, `UPDATE users SET display_name = $2, email = $3, updated_at = $4 WHERE id = $1`,
		id, displayName, email, at)
}

// UpdatePassword stores a freshly computed password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.update(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, at)
}

// UpdateAvatar swaps the avatar reference.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id, avatarURL string, at time.Time) error {
	return r.update(ctx, `UPDATE users SET avatar_url = $2, updated_at = $3 WHERE id = $1`,
		id, avatarURL, at)
}

// UpdateCover swaps the cover-image reference.
func (r *PostgresUserRepository) UpdateCover(ctx context.Context, id, coverURL string, at time.Time) error {
	return r.update(ctx, `UPDATE users SET cover_url = $2, updated_at = $3 WHERE id = $1`,
		id, coverURL, at)
}

// SetRefreshToken unconditionally overwrites the active refresh token. An
// empty token revokes the session.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, userID, token string) error {
	return r.update(ctx, `UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`,
		userID, token)
}

// SwapRefreshToken replaces the stored refresh token only when the previous
// value still matches, as a single conditional update. ErrNotFound means the
// presented token was already rotated or revoked.
func (r *PostgresUserRepository) SwapRefreshToken(ctx context.Context, userID, previous, next string) error {
	return r.update(ctx, `UPDATE users SET refresh_token = $3, updated_at = NOW() WHERE id = $1 AND refresh_token = $2`,
		userID, previous, next)
}

func (r *PostgresUserRepository) update(ctx context.Context, sql string, args ...any) error {
	return withRetry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()

		tag, err := conn.Exec(ctx, sql, args...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrConflict
			}
			return fmt.Errorf("update user: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		return nil
	})
}

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for
// subscription edges.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository
// backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Create inserts an edge. The unique (subscriber, channel) constraint makes
// re-subscribing a no-op rather than a duplicate.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub models.Subscription) error {
	return withRetry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()

		_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (subscriber_id, channel_id) DO NOTHING
    `, sub.ID, sub.SubscriberID, sub.ChannelID, sub.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrNotFound
			}
			return fmt.Errorf("insert subscription: %w", err)
		}

		return nil
	})
}

// Delete removes the edge for the provided pair. Missing edges are not an
// error so unsubscribing is idempotent too.
func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, subscriberID, channelID string) error {
	return withRetry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()

		if _, err := conn.Exec(ctx, `
        DELETE FROM subscriptions
        WHERE subscriber_id = $1 AND channel_id = $2
    `, subscriberID, channelID); err != nil {
			return fmt.Errorf("delete subscription: %w", err)
		}

		return nil
	})
}

// Stats computes subscriber count, subscribed-to count and the viewer's
// subscription flag in one read pass. An empty viewerID never matches an edge.
func (r *PostgresSubscriptionRepository) Stats(ctx context.Context, channelID, viewerID string) (ChannelStats, error) {
	var stats ChannelStats
	err := withRetry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()

		row := conn.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1),
            (SELECT COUNT(*) FROM subscriptions WHERE subscriber_id = $1),
            EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = $2 AND channel_id = $1)
    `, channelID, viewerID)
		if err := row.Scan(&stats.Subscribers, &stats.SubscribedTo, &stats.Subscribed); err != nil {
			return fmt.Errorf("select channel stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return ChannelStats{}, err
	}
	return stats, nil
}

// PostgresVideoRepository provides PostgreSQL-backed read access to videos
// and watch history.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// ListWatchHistory resolves the user's ordered watch list into full video
// records, each joined with its publisher's reduced projection.
func (r *PostgresVideoRepository) ListWatchHistory(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error) {
	var entries []models.WatchHistoryEntry
	err := withRetry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Release()

		rows, err := conn.Query(ctx, `
        SELECT v.id, v.publisher_id, v.title, v.description, v.video_url, v.thumbnail_url,
               v.duration_seconds, v.views, v.published, v.created_at,
               u.display_name, u.handle, u.avatar_url
        FROM watch_history wh
        JOIN videos v ON v.id = wh.video_id
        JOIN users u ON u.id = v.publisher_id
        WHERE wh.user_id = $1
        ORDER BY wh.position
    `, userID)
		if err != nil {
			return fmt.Errorf("query watch history: %w", err)
		}
		defer rows.Close()

		entries = entries[:0]
		for rows.Next() {
			var entry models.WatchHistoryEntry
			if err := rows.Scan(&entry.Video.ID, &entry.Video.PublisherID, &entry.Video.Title,
				&entry.Video.Description, &entry.Video.VideoURL, &entry.Video.ThumbnailURL,
				&entry.Video.Duration, &entry.Video.Views, &entry.Video.Published, &entry.Video.CreatedAt,
				&entry.Publisher.DisplayName, &entry.Publisher.Handle, &entry.Publisher.AvatarURL); err != nil {
				return fmt.Errorf("scan watch history entry: %w", err)
			}
			entries = append(entries, entry)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate watch history: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ SubscriptionRepository = (*PostgresSubscriptionRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
