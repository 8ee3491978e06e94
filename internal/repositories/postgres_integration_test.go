package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipstream/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `TRUNCATE TABLE watch_history, playlist_videos, playlists,
                likes, subscriptions, comments, tweets, videos, accounts CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestAccount(t *testing.T, repo *PostgresAccountRepository, handle string) models.Account {
	t.Helper()
	now := time.Now().UTC()
	account := models.Account{
		ID:           models.AccountID(uuid.NewString()),
		Handle:       handle,
		Email:        handle + "@example.com",
		DisplayName:  handle,
		PasswordHash: "password-hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("create test account: %v", err)
	}
	return account
}

func createTestVideo(t *testing.T, repo *PostgresVideoRepository, owner models.AccountID, title string, published bool) models.Video {
	t.Helper()
	now := time.Now().UTC()
	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		Title:        title,
		Description:  "about " + title,
		VideoURL:     "https://cdn.example.com/videos/" + title,
		VideoID:      "videos/" + title,
		ThumbnailURL: "https://cdn.example.com/images/" + title,
		ThumbnailID:  "images/" + title,
		Published:    published,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), video); err != nil {
		t.Fatalf("create test video: %v", err)
	}
	return video
}

func TestPostgresAccountRepository_CreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresAccountRepository(testPool)
	account := createTestAccount(t, repo, "alice")

	dup := account
	dup.ID = models.AccountID(uuid.NewString())
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate handle, got %v", err)
	}

	fetched, err := repo.FindByHandle(ctx, "alice")
	if err != nil {
		t.Fatalf("find by handle: %v", err)
	}
	if fetched.ID != account.ID || fetched.Email != account.Email {
		t.Fatalf("unexpected account fetched: %+v", fetched)
	}

	byEmail, err := repo.FindByHandleOrEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != account.ID {
		t.Fatalf("expected the same account, got %+v", byEmail)
	}

	if err := repo.UpdateRefreshToken(ctx, account.ID, "refresh-token-value"); err != nil {
		t.Fatalf("update refresh token: %v", err)
	}
	fetched, err = repo.FindByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.RefreshToken != "refresh-token-value" {
		t.Fatalf("refresh token not stored: %q", fetched.RefreshToken)
	}

	if err := repo.UpdateRefreshToken(ctx, account.ID, ""); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}
	fetched, err = repo.FindByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.RefreshToken != "" {
		t.Fatalf("refresh token not cleared: %q", fetched.RefreshToken)
	}

	if _, err := repo.FindByHandle(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresVideoRepository_ListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)

	owner := createTestAccount(t, accounts, "owner")
	other := createTestAccount(t, accounts, "other")

	published := createTestVideo(t, videos, owner.ID, "published-clip", true)
	createTestVideo(t, videos, owner.ID, "draft-clip", false)
	createTestVideo(t, videos, other.ID, "other-clip", true)

	listed, err := videos.List(ctx, ListVideosParams{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 published videos, got %d", len(listed))
	}

	// Owner filter by a stranger excludes drafts.
	listed, err = videos.List(ctx, ListVideosParams{Page: 1, Limit: 10, OwnerID: owner.ID, ViewerID: other.ID})
	if err != nil {
		t.Fatalf("list owner videos: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != published.ID {
		t.Fatalf("expected only the published video, got %+v", listed)
	}

	// The owner listing their own videos sees drafts too.
	listed, err = videos.List(ctx, ListVideosParams{Page: 1, Limit: 10, OwnerID: owner.ID, ViewerID: owner.ID})
	if err != nil {
		t.Fatalf("list own videos: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected drafts included for the owner, got %d", len(listed))
	}

	listed, err = videos.List(ctx, ListVideosParams{Page: 1, Limit: 10, Keyword: "other"})
	if err != nil {
		t.Fatalf("list by keyword: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "other-clip" {
		t.Fatalf("keyword filter failed: %+v", listed)
	}

	if err := videos.IncrementViews(ctx, published.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	listed, err = videos.List(ctx, ListVideosParams{Page: 1, Limit: 10, SortBy: "views", SortType: "desc"})
	if err != nil {
		t.Fatalf("list by views: %v", err)
	}
	if listed[0].ID != published.ID {
		t.Fatalf("expected the viewed video first, got %+v", listed[0])
	}
}

func TestPostgresVideoRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	comments := NewPostgresCommentRepository(testPool)
	likes := NewPostgresLikeRepository(testPool)

	owner := createTestAccount(t, accounts, "owner")
	video := createTestVideo(t, videos, owner.ID, "clip", true)

	now := time.Now().UTC()
	comment := models.Comment{ID: uuid.NewString(), VideoID: video.ID, AuthorID: owner.ID, Content: "first", CreatedAt: now, UpdatedAt: now}
	if err := comments.Create(ctx, comment); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if _, err := likes.Toggle(ctx, owner.ID, models.LikeTargetVideo, video.ID); err != nil {
		t.Fatalf("like video: %v", err)
	}
	if _, err := likes.Toggle(ctx, owner.ID, models.LikeTargetComment, comment.ID); err != nil {
		t.Fatalf("like comment: %v", err)
	}

	if err := videos.Delete(ctx, video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}

	if _, err := videos.FindByID(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected video gone, got %v", err)
	}
	if _, err := comments.FindByID(ctx, comment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected comment gone, got %v", err)
	}
	count, err := likes.CountForTarget(ctx, models.LikeTargetVideo, video.ID)
	if err != nil {
		t.Fatalf("count likes: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 likes after cascade, got %d", count)
	}
}

func TestPostgresLikeRepository_Toggle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	likes := NewPostgresLikeRepository(testPool)

	viewer := createTestAccount(t, accounts, "viewer")
	video := createTestVideo(t, videos, viewer.ID, "clip", true)

	liked, err := likes.Toggle(ctx, viewer.ID, models.LikeTargetVideo, video.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !liked {
		t.Fatal("expected first toggle to add a like")
	}

	count, err := likes.CountForTarget(ctx, models.LikeTargetVideo, video.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 like, got %d", count)
	}

	liked, err = likes.Toggle(ctx, viewer.ID, models.LikeTargetVideo, video.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if liked {
		t.Fatal("expected second toggle to remove the like")
	}

	if _, err := likes.Toggle(ctx, viewer.ID, models.LikeTargetVideo, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing target, got %v", err)
	}
}

func TestPostgresSubscriptionRepository_Toggle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	subs := NewPostgresSubscriptionRepository(testPool)

	viewer := createTestAccount(t, accounts, "viewer")
	channel := createTestAccount(t, accounts, "channel")

	subscribed, err := subs.Toggle(ctx, viewer.ID, channel.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !subscribed {
		t.Fatal("expected subscription to be created")
	}

	ok, err := subs.IsSubscribed(ctx, viewer.ID, channel.ID)
	if err != nil {
		t.Fatalf("is subscribed: %v", err)
	}
	if !ok {
		t.Fatal("expected IsSubscribed true")
	}

	count, err := subs.Count(ctx, channel.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 subscriber, got %d", count)
	}

	channels, err := subs.ListSubscribedChannels(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 1 || channels[0].ID != channel.ID {
		t.Fatalf("unexpected channel list: %+v", channels)
	}

	subscribed, err = subs.Toggle(ctx, viewer.ID, channel.ID)
	if err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if subscribed {
		t.Fatal("expected subscription to be removed")
	}
}

func TestPostgresPlaylistRepository_Ordering(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	playlists := NewPostgresPlaylistRepository(testPool)

	owner := createTestAccount(t, accounts, "owner")
	first := createTestVideo(t, videos, owner.ID, "first", true)
	second := createTestVideo(t, videos, owner.ID, "second", true)

	now := time.Now().UTC()
	playlist := models.Playlist{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Name:      "mix",
		Public:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := playlists.Create(ctx, playlist); err != nil {
		t.Fatalf("create playlist: %v", err)
	}

	if err := playlists.AddVideo(ctx, playlist.ID, first.ID); err != nil {
		t.Fatalf("add first video: %v", err)
	}
	if err := playlists.AddVideo(ctx, playlist.ID, second.ID); err != nil {
		t.Fatalf("add second video: %v", err)
	}
	if err := playlists.AddVideo(ctx, playlist.ID, first.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate video, got %v", err)
	}

	fetched, err := playlists.FindByID(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("find playlist: %v", err)
	}
	if len(fetched.VideoIDs) != 2 || fetched.VideoIDs[0] != first.ID || fetched.VideoIDs[1] != second.ID {
		t.Fatalf("expected insertion order preserved, got %v", fetched.VideoIDs)
	}

	if err := playlists.RemoveVideo(ctx, playlist.ID, first.ID); err != nil {
		t.Fatalf("remove video: %v", err)
	}
	fetched, err = playlists.FindByID(ctx, playlist.ID)
	if err != nil {
		t.Fatalf("find playlist: %v", err)
	}
	if len(fetched.VideoIDs) != 1 || fetched.VideoIDs[0] != second.ID {
		t.Fatalf("unexpected playlist contents: %v", fetched.VideoIDs)
	}
}

func TestPostgresHistoryRepository_RecordDeduplicates(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	history := NewPostgresHistoryRepository(testPool)

	viewer := createTestAccount(t, accounts, "viewer")
	video := createTestVideo(t, videos, viewer.ID, "clip", true)

	if err := history.Record(ctx, viewer.ID, video.ID); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := history.Record(ctx, viewer.ID, video.ID); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	watched, err := history.ListVideos(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(watched) != 1 || watched[0].ID != video.ID {
		t.Fatalf("expected one deduplicated entry, got %+v", watched)
	}
}

func TestPostgresStatsRepository_ChannelStats(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	likes := NewPostgresLikeRepository(testPool)
	subs := NewPostgresSubscriptionRepository(testPool)
	stats := NewPostgresStatsRepository(testPool)

	owner := createTestAccount(t, accounts, "owner")
	fan := createTestAccount(t, accounts, "fan")
	video := createTestVideo(t, videos, owner.ID, "clip", true)

	if err := videos.IncrementViews(ctx, video.ID); err != nil {
		t.Fatalf("increment views: %v", err)
	}
	if _, err := likes.Toggle(ctx, fan.ID, models.LikeTargetVideo, video.ID); err != nil {
		t.Fatalf("like: %v", err)
	}
	if _, err := subs.Toggle(ctx, fan.ID, owner.ID); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	got, err := stats.ChannelStats(ctx, owner.ID)
	if err != nil {
		t.Fatalf("channel stats: %v", err)
	}
	want := models.ChannelStats{TotalVideos: 1, TotalViews: 1, TotalSubscribers: 1, TotalLikes: 1}
	if got != want {
		t.Fatalf("stats = %+v, want %+v", got, want)
	}
}

func TestPostgresAccountRepository_DeleteCascade(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	accounts := NewPostgresAccountRepository(testPool)
	videos := NewPostgresVideoRepository(testPool)
	comments := NewPostgresCommentRepository(testPool)
	likes := NewPostgresLikeRepository(testPool)
	subs := NewPostgresSubscriptionRepository(testPool)

	owner := createTestAccount(t, accounts, "owner")
	fan := createTestAccount(t, accounts, "fan")
	secondFan := createTestAccount(t, accounts, "fan2")
	video := createTestVideo(t, videos, owner.ID, "clip", true)

	now := time.Now().UTC()
	comment := models.Comment{ID: uuid.NewString(), VideoID: video.ID, AuthorID: fan.ID, Content: "bye", CreatedAt: now, UpdatedAt: now}
	if err := comments.Create(ctx, comment); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if _, err := likes.Toggle(ctx, fan.ID, models.LikeTargetVideo, video.ID); err != nil {
		t.Fatalf("like: %v", err)
	}
	// One fan's comment liked by another fan: neither row belongs to the
	// owner, but both sit under the owner's video and must go with it.
	if _, err := likes.Toggle(ctx, secondFan.ID, models.LikeTargetComment, comment.ID); err != nil {
		t.Fatalf("like comment: %v", err)
	}
	if _, err := subs.Toggle(ctx, fan.ID, owner.ID); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := accounts.DeleteCascade(ctx, owner.ID); err != nil {
		t.Fatalf("delete cascade: %v", err)
	}

	if _, err := accounts.FindByID(ctx, owner.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected account gone, got %v", err)
	}
	if _, err := videos.FindByID(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected video gone, got %v", err)
	}
	if _, err := comments.FindByID(ctx, comment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected comment gone, got %v", err)
	}
	commentLikes, err := likes.CountForTarget(ctx, models.LikeTargetComment, comment.ID)
	if err != nil {
		t.Fatalf("count comment likes: %v", err)
	}
	if commentLikes != 0 {
		t.Fatalf("expected comment likes removed, got %d", commentLikes)
	}
	count, err := subs.Count(ctx, owner.ID)
	if err != nil {
		t.Fatalf("count subscriptions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected subscriptions removed, got %d", count)
	}

	// The commenting account survives its target's removal.
	if _, err := accounts.FindByID(ctx, fan.ID); err != nil {
		t.Fatalf("expected fan account to remain: %v", err)
	}
}
