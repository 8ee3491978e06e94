package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// MaxPageSize caps listing page sizes; larger requests are clamped, not rejected.
const MaxPageSize = 100

const videoColumns = `id, owner_id, title, description, video_url, video_public_id,
        thumbnail_url, thumbnail_public_id, duration, views, published, created_at, updated_at`

// ListVideosParams filters and orders the public video listing.
type ListVideosParams struct {
	Page     int
	Limit    int
	Keyword  string
	OwnerID  models.AccountID
	SortBy   string // createdAt, views or likesCount
	SortType string // asc or desc
	// ViewerID lets an owner see their own unpublished items in filtered lists.
	ViewerID models.AccountID
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, title, description, video_url, video_public_id,
                thumbnail_url, thumbnail_public_id, duration, views, published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, video.ID, video.OwnerID, video.Title, video.Description, video.VideoURL, video.VideoID,
		video.ThumbnailURL, video.ThumbnailID, video.Duration, video.Views, video.Published,
		video.CreatedAt, video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a video regardless of its published flag; visibility is
// the handler's decision.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}
	return video, nil
}

// List returns a filtered, sorted page of published videos. An owner filter
// matching the viewer also includes unpublished items.
func (r *PostgresVideoRepository) List(ctx context.Context, params ListVideosParams) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = 10
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.OwnerID != "" && params.OwnerID == params.ViewerID {
		where = append(where, `v.owner_id = `+arg(string(params.OwnerID)))
	} else {
		where = append(where, `v.published`)
		if params.OwnerID != "" {
			where = append(where, `v.owner_id = `+arg(string(params.OwnerID)))
		}
	}
	if params.Keyword != "" {
		p := arg("%" + params.Keyword + "%")
		where = append(where, `(v.title ILIKE `+p+` OR v.description ILIKE `+p+`)`)
	}

	orderCol := map[string]string{
		"createdAt":  "v.created_at",
		"views":      "v.views",
		"likesCount": "likes_count",
	}[params.SortBy]
	if orderCol == "" {
		orderCol = "v.created_at"
	}
	direction := "DESC"
	if strings.EqualFold(params.SortType, "asc") {
		direction = "ASC"
	}

	query := `
        SELECT v.id, v.owner_id, v.title, v.description, v.video_url, v.video_public_id,
               v.thumbnail_url, v.thumbnail_public_id, v.duration, v.views, v.published,
               v.created_at, v.updated_at
        FROM (
            SELECT v.*, COUNT(l.id) AS likes_count
            FROM videos v
            LEFT JOIN likes l ON l.video_id = v.id
            GROUP BY v.id
        ) v
        WHERE ` + strings.Join(where, " AND ") + `
        ORDER BY ` + orderCol + ` ` + direction + `
        LIMIT ` + arg(limit) + ` OFFSET ` + arg((page-1)*limit)

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

// ListByOwner returns every video owned by an account, unpublished included.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, owner models.AccountID) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+` FROM videos WHERE owner_id = $1 ORDER BY created_at DESC
    `, string(owner))
	if err != nil {
		return nil, fmt.Errorf("query owner videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

// Update persists metadata and thumbnail changes.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET title = $2, description = $3, thumbnail_url = $4, thumbnail_public_id = $5, updated_at = $6
        WHERE id = $1
    `, video.ID, video.Title, video.Description, video.ThumbnailURL, video.ThumbnailID, video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPublished flips the published flag.
func (r *PostgresVideoRepository) SetPublished(ctx context.Context, id string, published bool) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos SET published = $2, updated_at = $3 WHERE id = $1
    `, id, published, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update video published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the view counter by one.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE videos SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a video and the comments and likes hanging off it, in one
// transaction.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin video delete: %w", err)
	}
	defer tx.Rollback(ctx)

	steps := []string{
		`DELETE FROM likes WHERE comment_id IN (SELECT id FROM comments WHERE video_id = $1)`,
		`DELETE FROM likes WHERE video_id = $1`,
		`DELETE FROM comments WHERE video_id = $1`,
		`DELETE FROM playlist_videos WHERE video_id = $1`,
		`DELETE FROM watch_history WHERE video_id = $1`,
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step, id); err != nil {
			return fmt.Errorf("delete video dependents: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit video delete: %w", err)
	}
	return nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.OwnerID, &v.Title, &v.Description, &v.VideoURL, &v.VideoID,
		&v.ThumbnailURL, &v.ThumbnailID, &v.Duration, &v.Views, &v.Published,
		&v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func collectVideos(rows pgx.Rows) ([]models.Video, error) {
	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}
