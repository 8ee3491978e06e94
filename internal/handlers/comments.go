package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

const maxCommentLength = 1000

// CommentHandler implements video comment endpoints.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore

	NowFunc func() time.Time
}

// ListByVideo handles GET /api/v1/comments/video/{videoId}.
func (h CommentHandler) ListByVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := pathParam(r, "videoId")
	if videoID == "" {
		respondError(ctx, w, apperror.BadRequest("video id is required"))
		return
	}
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("video not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("look up video", err))
		return
	}

	comments, err := h.Comments.ListByVideo(ctx, videoID, queryInt(r, "page", 1), queryInt(r, "limit", 10))
	if err != nil {
		respondError(ctx, w, apperror.Internal("list comments", err))
		return
	}

	out := make([]commentJSON, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentJSON(c))
	}
	respondJSON(ctx, w, http.StatusOK, "comments", out)
}

// Create handles POST /api/v1/comments/video/{videoId}.
func (h CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	videoID := pathParam(r, "videoId")
	if videoID == "" {
		respondError(ctx, w, apperror.BadRequest("video id is required"))
		return
	}

	content, err := decodeContent(r, maxCommentLength)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("video not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("look up video", err))
		return
	}
	if !video.Published && !account.ID.Owns(video.OwnerID) {
		respondError(ctx, w, apperror.NotFound("video not found"))
		return
	}

	now := h.now()
	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   video.ID,
		AuthorID:  account.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		respondError(ctx, w, apperror.Internal("create comment", err))
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "comment added", toCommentJSON(comment))
}

// Update handles PATCH /api/v1/comments/{commentId}. Only the author may
// edit their comment.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	comment, ok := h.loadComment(w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(comment.AuthorID) {
		respondError(ctx, w, apperror.Forbidden("only the author can edit a comment"))
		return
	}

	content, err := decodeContent(r, maxCommentLength)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	if err := h.Comments.UpdateContent(ctx, comment.ID, content, now); err != nil {
		respondError(ctx, w, apperror.Internal("update comment", err))
		return
	}

	comment.Content = content
	comment.UpdatedAt = now
	respondJSON(ctx, w, http.StatusOK, "comment updated", toCommentJSON(comment))
}

// Delete handles DELETE /api/v1/comments/{commentId}. The author can always
// remove their comment, and the owner of the video can moderate it away.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	comment, ok := h.loadComment(w, r)
	if !ok {
		return
	}

	if !account.ID.Owns(comment.AuthorID) {
		video, err := h.Videos.FindByID(ctx, comment.VideoID)
		if err != nil || !account.ID.Owns(video.OwnerID) {
			respondError(ctx, w, apperror.Forbidden("only the author or the video owner can delete a comment"))
			return
		}
	}

	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("comment not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("delete comment", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "comment deleted", nil)
}

func (h CommentHandler) loadComment(w http.ResponseWriter, r *http.Request) (models.Comment, bool) {
	ctx := r.Context()

	id := pathParam(r, "commentId")
	if id == "" {
		respondError(ctx, w, apperror.BadRequest("comment id is required"))
		return models.Comment{}, false
	}

	comment, err := h.Comments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("comment not found"))
			return models.Comment{}, false
		}
		respondError(ctx, w, apperror.Internal("look up comment", err))
		return models.Comment{}, false
	}
	return comment, true
}

func (h CommentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// decodeContent reads the {"content": ...} body shared by comment and tweet
// endpoints. Each resource passes its own length bound.
func decodeContent(r *http.Request, limit int) (string, error) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", apperror.BadRequest("invalid request body")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return "", apperror.BadRequest("content is required")
	}
	if len(content) > limit {
		return "", apperror.BadRequest(fmt.Sprintf("content exceeds the %d character limit", limit))
	}
	return content, nil
}
