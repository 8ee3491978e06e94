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

const accountColumns = `id, handle, email, display_name, password_hash,
        avatar_url, avatar_id, cover_url, cover_id, COALESCE(refresh_token, ''),
        created_at, updated_at`

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account record. Handle and email collisions surface
// as ErrConflict.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (id, handle, email, display_name, password_hash,
                avatar_url, avatar_id, cover_url, cover_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
    `, account.ID, account.Handle, account.Email, account.DisplayName, account.PasswordHash,
		account.AvatarURL, account.AvatarID, account.CoverURL, account.CoverID,
		account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// FindByID fetches an account by its identifier.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, id models.AccountID) (models.Account, error) {
	return r.findOne(ctx, `WHERE id = $1`, string(id))
}

// FindByHandle fetches an account by its lowercase handle.
func (r *PostgresAccountRepository) FindByHandle(ctx context.Context, handle string) (models.Account, error) {
	return r.findOne(ctx, `WHERE handle = $1`, handle)
}

// FindByHandleOrEmail resolves a login identifier against either unique column.
func (r *PostgresAccountRepository) FindByHandleOrEmail(ctx context.Context, identifier string) (models.Account, error) {
	return r.findOne(ctx, `WHERE handle = $1 OR email = $1`, identifier)
}

func (r *PostgresAccountRepository) findOne(ctx context.Context, where string, arg string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts `+where, arg)

	var a models.Account
	if err := row.Scan(&a.ID, &a.Handle, &a.Email, &a.DisplayName, &a.PasswordHash,
		&a.AvatarURL, &a.AvatarID, &a.CoverURL, &a.CoverID, &a.RefreshToken,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select account: %w", err)
	}

	return a, nil
}

// UpdateRefreshToken overwrites the single active refresh token. An empty
// token clears it, which is how logout revokes the session.
func (r *PostgresAccountRepository) UpdateRefreshToken(ctx context.Context, id models.AccountID, token string) error {
	return r.update(ctx, `
        UPDATE accounts SET refresh_token = NULLIF($2, ''), updated_at = $3 WHERE id = $1
    `, string(id), token, time.Now().UTC())
}

// UpdatePassword replaces the stored password digest.
func (r *PostgresAccountRepository) UpdatePassword(ctx context.Context, id models.AccountID, passwordHash string) error {
	return r.update(ctx, `
        UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1
    `, string(id), passwordHash, time.Now().UTC())
}

// UpdateProfile changes the mutable identity fields.
func (r *PostgresAccountRepository) UpdateProfile(ctx context.Context, id models.AccountID, email, displayName string) error {
	return r.update(ctx, `
        UPDATE accounts SET email = $2, display_name = $3, updated_at = $4 WHERE id = $1
    `, string(id), email, displayName, time.Now().UTC())
}

// UpdateAvatar swaps the avatar reference.
func (r *PostgresAccountRepository) UpdateAvatar(ctx context.Context, id models.AccountID, url, publicID string) error {
	return r.update(ctx, `
        UPDATE accounts SET avatar_url = $2, avatar_id = $3, updated_at = $4 WHERE id = $1
    `, string(id), url, publicID, time.Now().UTC())
}

// UpdateCover swaps the cover image reference.
func (r *PostgresAccountRepository) UpdateCover(ctx context.Context, id models.AccountID, url, publicID string) error {
	return r.update(ctx, `
        UPDATE accounts SET cover_url = $2, cover_id = $3, updated_at = $4 WHERE id = $1
    `, string(id), url, publicID, time.Now().UTC())
}

func (r *PostgresAccountRepository) update(ctx context.Context, query string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCascade removes the account and every row referencing it, in
// dependency order, inside a single transaction. Remote media files are the
// caller's concern; only database state is touched here.
func (r *PostgresAccountRepository) DeleteCascade(ctx context.Context, id models.AccountID) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete cascade: %w", err)
	}
	defer tx.Rollback(ctx)

	steps := []string{
		// Reactions on this account's videos, comments and tweets. Comments
		// under the account's videos may be authored by anyone, so their
		// likes need their own pass or the comments delete below hits the
		// likes foreign key.
		`DELETE FROM likes WHERE video_id IN (SELECT id FROM videos WHERE owner_id = $1)`,
		`DELETE FROM likes WHERE comment_id IN (SELECT id FROM comments WHERE video_id IN (SELECT id FROM videos WHERE owner_id = $1))`,
		`DELETE FROM likes WHERE comment_id IN (SELECT id FROM comments WHERE author_id = $1)`,
		`DELETE FROM likes WHERE tweet_id IN (SELECT id FROM tweets WHERE author_id = $1)`,
		// Reactions made by this account.
		`DELETE FROM likes WHERE account_id = $1`,
		// Comments on this account's videos, then its own comments elsewhere.
		`DELETE FROM comments WHERE video_id IN (SELECT id FROM videos WHERE owner_id = $1)`,
		`DELETE FROM comments WHERE author_id = $1`,
		`DELETE FROM tweets WHERE author_id = $1`,
		`DELETE FROM playlist_videos WHERE playlist_id IN (SELECT id FROM playlists WHERE owner_id = $1)`,
		`DELETE FROM playlists WHERE owner_id = $1`,
		`DELETE FROM playlist_videos WHERE video_id IN (SELECT id FROM videos WHERE owner_id = $1)`,
		`DELETE FROM watch_history WHERE account_id = $1 OR video_id IN (SELECT id FROM videos WHERE owner_id = $1)`,
		`DELETE FROM videos WHERE owner_id = $1`,
		`DELETE FROM subscriptions WHERE subscriber_id = $1 OR channel_id = $1`,
		`DELETE FROM accounts WHERE id = $1`,
	}

	for _, step := range steps {
		if _, err := tx.Exec(ctx, step, string(id)); err != nil {
			return fmt.Errorf("delete cascade: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete cascade: %w", err)
	}
	return nil
}
