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

// PostgresSubscriptionRepository provides PostgreSQL-backed persistence for subscriptions.
type PostgresSubscriptionRepository struct {
	pool db.Pool
}

// NewPostgresSubscriptionRepository constructs a subscription repository backed by PostgreSQL.
func NewPostgresSubscriptionRepository(pool db.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Toggle flips the (subscriber, channel) state and reports the resulting
// state: true when subscribed, false when unsubscribed. The unique index on
// the pair turns a duplicate-insert race into ErrConflict.
func (r *PostgresSubscriptionRepository) Toggle(ctx context.Context, subscriber, channel models.AccountID) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
    `, string(subscriber), string(channel))
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO subscriptions (id, subscriber_id, channel_id, created_at)
        VALUES ($1, $2, $3, $4)
    `, uuid.NewString(), string(subscriber), string(channel), time.Now().UTC())
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
		return false, fmt.Errorf("insert subscription: %w", err)
	}

	return true, nil
}

// Count returns how many accounts subscribe to a channel.
func (r *PostgresSubscriptionRepository) Count(ctx context.Context, channel models.AccountID) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int64
	row := conn.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`, string(channel))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return count, nil
}

// IsSubscribed reports whether subscriber currently follows channel.
func (r *PostgresSubscriptionRepository) IsSubscribed(ctx context.Context, subscriber, channel models.AccountID) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	row := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2)
    `, string(subscriber), string(channel))
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return exists, nil
}

// ListSubscribedChannels returns the channels an account follows.
func (r *PostgresSubscriptionRepository) ListSubscribedChannels(ctx context.Context, subscriber models.AccountID) ([]models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT a.id, a.handle, a.email, a.display_name, a.avatar_url, a.cover_url, a.created_at
        FROM subscriptions s
        JOIN accounts a ON a.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC
    `, string(subscriber))
	if err != nil {
		return nil, fmt.Errorf("query subscribed channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.Handle, &a.Email, &a.DisplayName, &a.AvatarURL, &a.CoverURL, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}
