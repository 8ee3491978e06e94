package handlers

import (
	"time"

	"github.com/clipstream/backend/internal/models"
)

// accountJSON is the public view of an account. The password digest and the
// stored refresh token never leave the server.
type accountJSON struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toAccountJSON(a models.Account) accountJSON {
	return accountJSON{
		ID:          string(a.ID),
		Handle:      a.Handle,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
		CoverURL:    a.CoverURL,
		CreatedAt:   a.CreatedAt,
	}
}

type channelJSON struct {
	accountJSON
	Subscribers  int64 `json:"subscribers"`
	IsSubscribed bool  `json:"isSubscribed"`
}

type videoJSON struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	Duration     float64   `json:"duration"`
	Views        int64     `json:"views"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toVideoJSON(v models.Video) videoJSON {
	return videoJSON{
		ID:           v.ID,
		OwnerID:      string(v.OwnerID),
		Title:        v.Title,
		Description:  v.Description,
		VideoURL:     v.VideoURL,
		ThumbnailURL: v.ThumbnailURL,
		Duration:     v.Duration,
		Views:        v.Views,
		Published:    v.Published,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

func toVideoListJSON(videos []models.Video) []videoJSON {
	out := make([]videoJSON, 0, len(videos))
	for _, v := range videos {
		out = append(out, toVideoJSON(v))
	}
	return out
}

type commentJSON struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toCommentJSON(c models.Comment) commentJSON {
	return commentJSON{
		ID:        c.ID,
		VideoID:   c.VideoID,
		AuthorID:  string(c.AuthorID),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type tweetJSON struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toTweetJSON(t models.Tweet) tweetJSON {
	return tweetJSON{
		ID:        t.ID,
		AuthorID:  string(t.AuthorID),
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type playlistJSON struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Public      bool      `json:"public"`
	VideoIDs    []string  `json:"videoIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toPlaylistJSON(p models.Playlist) playlistJSON {
	ids := p.VideoIDs
	if ids == nil {
		ids = []string{}
	}
	return playlistJSON{
		ID:          p.ID,
		OwnerID:     string(p.OwnerID),
		Name:        p.Name,
		Description: p.Description,
		Public:      p.Public,
		VideoIDs:    ids,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type statsJSON struct {
	TotalVideos      int64 `json:"totalVideos"`
	TotalViews       int64 `json:"totalViews"`
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalLikes       int64 `json:"totalLikes"`
}
