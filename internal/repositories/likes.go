package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresLikeRepository provides PostgreSQL-backed persistence for likes.
type PostgresLikeRepository struct {
	pool db.Pool
}

// NewPostgresLikeRepository constructs a like repository backed by PostgreSQL.
func NewPostgresLikeRepository(pool db.Pool) *PostgresLikeRepository {
	return &PostgresLikeRepository{pool: pool}
}

// Toggle flips the (account, target) like state and reports the resulting
// state: true when the call created the like, false when it removed it.
// The partial unique index per target kind guards the insert; a duplicate
// insert losing a race surfaces as ErrConflict.
func (r *PostgresLikeRepository) Toggle(ctx context.Context, account models.AccountID, target models.LikeTarget, targetID string) (bool, error) {
	column, err := targetColumn(target)
	if err != nil {
		return false, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx,
		`DELETE FROM likes WHERE account_id = $1 AND `+column+` = $2`,
		string(account), targetID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = conn.Exec(ctx,
		`INSERT INTO likes (id, account_id, `+column+`, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), string(account), targetID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return false, ErrConflict
			case "23503":
				return false, ErrNotFound
			}
		}
		return false, fmt.Errorf("insert like: %w", err)
	}

	return true, nil
}

// CountForTarget returns how many likes a single resource has.
func (r *PostgresLikeRepository) CountForTarget(ctx context.Context, target models.LikeTarget, targetID string) (int64, error) {
	column, err := targetColumn(target)
	if err != nil {
		return 0, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int64
	row := conn.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE `+column+` = $1`, targetID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}

// ListLikedVideos returns the published videos an account has liked, newest
// like first.
func (r *PostgresLikeRepository) ListLikedVideos(ctx context.Context, account models.AccountID) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_url, v.video_public_id,
               v.thumbnail_url, v.thumbnail_public_id, v.duration, v.views, v.published,
               v.created_at, v.updated_at
        FROM likes l
        JOIN videos v ON v.id = l.video_id
        WHERE l.account_id = $1 AND v.published
        ORDER BY l.created_at DESC
    `, string(account))
	if err != nil {
		return nil, fmt.Errorf("query liked videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func targetColumn(target models.LikeTarget) (string, error) {
	switch target {
	case models.LikeTargetVideo:
		return "video_id", nil
	case models.LikeTargetComment:
		return "comment_id", nil
	case models.LikeTargetTweet:
		return "tweet_id", nil
	default:
		return "", fmt.Errorf("unknown like target %q", target)
	}
}
