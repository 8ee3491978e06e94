package handlers

import (
	"errors"
	"net/http"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// LikeHandler implements like toggles for videos, comments and tweets.
type LikeHandler struct {
	Likes LikeStore
}

// ToggleVideo handles POST /api/v1/likes/toggle/video/{videoId}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetVideo, "videoId")
}

// ToggleComment handles POST /api/v1/likes/toggle/comment/{commentId}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetComment, "commentId")
}

// ToggleTweet handles POST /api/v1/likes/toggle/tweet/{tweetId}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetTweet, "tweetId")
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	videos, err := h.Likes.ListLikedVideos(ctx, account.ID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("list liked videos", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "liked videos", toVideoListJSON(videos))
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, target models.LikeTarget, param string) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	targetID := pathParam(r, param)
	if targetID == "" {
		respondError(ctx, w, apperror.BadRequest(string(target)+" id is required"))
		return
	}

	liked, err := h.Likes.Toggle(ctx, account.ID, target, targetID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, apperror.NotFound(string(target)+" not found"))
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, apperror.Conflict("like already recorded"))
		default:
			respondError(ctx, w, apperror.Internal("toggle like", err))
		}
		return
	}

	count, err := h.Likes.CountForTarget(ctx, target, targetID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("count likes", err))
		return
	}

	message := "like removed"
	if liked {
		message = "like added"
	}
	respondJSON(ctx, w, http.StatusOK, message, map[string]any{
		"liked": liked,
		"likes": count,
	})
}
