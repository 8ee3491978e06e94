package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresHistoryRepository records and lists which videos an account watched.
type PostgresHistoryRepository struct {
	pool db.Pool
}

// NewPostgresHistoryRepository constructs a watch-history repository backed by PostgreSQL.
func NewPostgresHistoryRepository(pool db.Pool) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{pool: pool}
}

// Record appends a watch entry. Rewatching moves the video to the front of
// the history rather than duplicating it.
func (r *PostgresHistoryRepository) Record(ctx context.Context, account models.AccountID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (account_id, video_id, watched_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (account_id, video_id) DO UPDATE SET watched_at = EXCLUDED.watched_at
    `, string(account), videoID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record watch entry: %w", err)
	}
	return nil
}

// ListVideos returns the watched videos, most recently watched first.
func (r *PostgresHistoryRepository) ListVideos(ctx context.Context, account models.AccountID) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_url, v.video_public_id,
               v.thumbnail_url, v.thumbnail_public_id, v.duration, v.views, v.published,
               v.created_at, v.updated_at
        FROM watch_history h
        JOIN videos v ON v.id = h.video_id
        WHERE h.account_id = $1
        ORDER BY h.watched_at DESC
    `, string(account))
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}
