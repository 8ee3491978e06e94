package models

import "time"

// AccountID identifies a registered account. Ownership checks compare
// AccountID values directly rather than raw strings.
type AccountID string

// Owns reports whether the account identified by id owns a resource whose
// owner reference is other.
func (id AccountID) Owns(other AccountID) bool {
	return id != "" && id == other
}

// Account represents a registered user and channel identity.
type Account struct {
	ID           AccountID
	Handle       string
	Email        string
	DisplayName  string
	PasswordHash string
	AvatarURL    string
	AvatarID     string
	CoverURL     string
	CoverID      string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Video is an uploaded content item owned by exactly one account.
type Video struct {
	ID           string
	OwnerID      AccountID
	Title        string
	Description  string
	VideoURL     string
	VideoID      string
	ThumbnailURL string
	ThumbnailID  string
	Duration     float64
	Views        int64
	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Comment belongs to one video and one author.
type Comment struct {
	ID        string
	VideoID   string
	AuthorID  AccountID
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tweet is a short post belonging to one account.
type Tweet struct {
	ID        string
	AuthorID  AccountID
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Playlist is an ordered collection of distinct videos.
type Playlist struct {
	ID          string
	OwnerID     AccountID
	Name        string
	Description string
	Public      bool
	VideoIDs    []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LikeTarget names the kind of resource a like points at.
type LikeTarget string

const (
	LikeTargetVideo   LikeTarget = "video"
	LikeTargetComment LikeTarget = "comment"
	LikeTargetTweet   LikeTarget = "tweet"
)

// Like is a join record from an account to exactly one likeable resource.
type Like struct {
	ID        string
	AccountID AccountID
	Target    LikeTarget
	TargetID  string
	CreatedAt time.Time
}

// Subscription is a join record from a subscriber to a channel account.
type Subscription struct {
	ID           string
	SubscriberID AccountID
	ChannelID    AccountID
	CreatedAt    time.Time
}

// WatchEntry records that an account watched a video.
type WatchEntry struct {
	AccountID AccountID
	VideoID   string
	WatchedAt time.Time
}

// ChannelStats aggregates dashboard figures for one channel.
type ChannelStats struct {
	TotalVideos      int64
	TotalViews       int64
	TotalSubscribers int64
	TotalLikes       int64
}
