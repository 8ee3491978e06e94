package handlers

import (
	"context"
	"time"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
	"github.com/clipstream/backend/internal/uploads"
)

// AccountStore captures the persistence operations required by the user handlers.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByID(ctx context.Context, id models.AccountID) (models.Account, error)
	FindByHandle(ctx context.Context, handle string) (models.Account, error)
	FindByHandleOrEmail(ctx context.Context, identifier string) (models.Account, error)
	UpdateRefreshToken(ctx context.Context, id models.AccountID, token string) error
	UpdatePassword(ctx context.Context, id models.AccountID, passwordHash string) error
	UpdateProfile(ctx context.Context, id models.AccountID, email, displayName string) error
	UpdateAvatar(ctx context.Context, id models.AccountID, url, publicID string) error
	UpdateCover(ctx context.Context, id models.AccountID, url, publicID string) error
	DeleteCascade(ctx context.Context, id models.AccountID) error
}

// VideoStore captures persistence for video workflows.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, params repositories.ListVideosParams) ([]models.Video, error)
	ListByOwner(ctx context.Context, owner models.AccountID) ([]models.Video, error)
	Update(ctx context.Context, video models.Video) error
	SetPublished(ctx context.Context, id string, published bool) error
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// CommentStore captures persistence for comment workflows.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	ListByVideo(ctx context.Context, videoID string, page, limit int) ([]models.Comment, error)
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// TweetStore captures persistence for tweet workflows.
type TweetStore interface {
	Create(ctx context.Context, tweet models.Tweet) error
	FindByID(ctx context.Context, id string) (models.Tweet, error)
	ListByAuthor(ctx context.Context, author models.AccountID) ([]models.Tweet, error)
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// LikeStore captures persistence for reaction toggles.
type LikeStore interface {
	Toggle(ctx context.Context, account models.AccountID, target models.LikeTarget, targetID string) (bool, error)
	CountForTarget(ctx context.Context, target models.LikeTarget, targetID string) (int64, error)
	ListLikedVideos(ctx context.Context, account models.AccountID) ([]models.Video, error)
}

// SubscriptionStore captures persistence for channel subscriptions.
type SubscriptionStore interface {
	Toggle(ctx context.Context, subscriber, channel models.AccountID) (bool, error)
	Count(ctx context.Context, channel models.AccountID) (int64, error)
	IsSubscribed(ctx context.Context, subscriber, channel models.AccountID) (bool, error)
	ListSubscribedChannels(ctx context.Context, subscriber models.AccountID) ([]models.Account, error)
}

// PlaylistStore captures persistence for playlist workflows.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListByOwner(ctx context.Context, owner models.AccountID) ([]models.Playlist, error)
	Update(ctx context.Context, playlist models.Playlist) error
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) error
	Delete(ctx context.Context, id string) error
}

// HistoryStore records and lists watched videos.
type HistoryStore interface {
	Record(ctx context.Context, account models.AccountID, videoID string) error
	ListVideos(ctx context.Context, account models.AccountID) ([]models.Video, error)
}

// StatsStore aggregates dashboard figures.
type StatsStore interface {
	ChannelStats(ctx context.Context, owner models.AccountID) (models.ChannelStats, error)
}

// TokenIssuer issues and verifies the two token kinds.
type TokenIssuer interface {
	IssueAccessToken(account models.Account) (string, error)
	IssueRefreshToken(accountID models.AccountID) (string, error)
	VerifyRefreshToken(tokenStr string) (models.AccountID, error)
}

// PasswordHasher hashes and verifies password digests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(digest, password string) bool
}

// Pinger reports persistence connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts      AccountStore
	Videos        VideoStore
	Comments      CommentStore
	Tweets        TweetStore
	Likes         LikeStore
	Subscriptions SubscriptionStore
	Playlists     PlaylistStore
	History       HistoryStore
	Stats         StatsStore

	Tokens   TokenIssuer
	Hasher   PasswordHasher
	Media    storage.MediaStore
	Stager   uploads.Stager
	Limiter  RateLimiter
	DBPinger Pinger

	AccessTokenMaxAge  int
	RefreshTokenMaxAge int
}
