package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
	"github.com/clipstream/backend/internal/uploads"
)

const (
	maxVideoTitleLength       = 100
	maxVideoDescriptionLength = 1000
)

// VideoHandler implements the video catalog and upload endpoints.
type VideoHandler struct {
	Videos  VideoStore
	History HistoryStore
	Media   storage.MediaStore
	Stager  uploads.Stager

	NowFunc func() time.Time
}

// List handles GET /api/v1/videos. Optional auth: an owner filter matching
// the caller includes their unpublished videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := repositories.ListVideosParams{
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 10),
		Keyword:  queryString(r, "keyword"),
		OwnerID:  models.AccountID(queryString(r, "userId")),
		SortBy:   queryString(r, "sortBy"),
		SortType: queryString(r, "sortType"),
	}
	if viewer, ok := auth.AccountFromContext(ctx); ok {
		params.ViewerID = viewer.ID
	}

	videos, err := h.Videos.List(ctx, params)
	if err != nil {
		respondError(ctx, w, apperror.Internal("list videos", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "videos", toVideoListJSON(videos))
}

// Create handles POST /api/v1/videos. The pipeline stages both files locally,
// validates them before any remote call, transfers them concurrently, and
// compensates the remote objects away if the database insert fails.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	staged, err := h.Stager.Stage(r, map[string]uploads.Rule{
		"videoFile": uploads.VideoRule(true, 0),
		"thumbnail": uploads.ImageRule(true, 0),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer staged.Cleanup(ctx)
	staged.Watch(ctx)

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		respondError(ctx, w, apperror.BadRequest("title is required"))
		return
	}
	if err := validateVideoMetadata(title, description); err != nil {
		respondError(ctx, w, err)
		return
	}

	assets, err := uploads.Transfer(ctx, h.Media, staged)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	videoAsset, thumbAsset := assets["videoFile"], assets["thumbnail"]

	now := h.now()
	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      account.ID,
		Title:        title,
		Description:  description,
		VideoURL:     videoAsset.URL,
		VideoID:      videoAsset.PublicID,
		ThumbnailURL: thumbAsset.URL,
		ThumbnailID:  thumbAsset.PublicID,
		Duration:     videoAsset.Duration,
		// A fresh upload is a draft until the owner publishes it.
		Published:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		uploads.Compensate(context.WithoutCancel(ctx), h.Media, assets)
		respondError(ctx, w, apperror.Internal("persist video", err))
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "video uploaded", toVideoJSON(video))
}

// Get handles GET /api/v1/videos/{videoId}. An unpublished video is visible
// only to its owner; anyone else sees a 404, not a 403, so the video's
// existence is not revealed. A successful view by an authenticated caller
// bumps the counter and lands in their watch history.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := h.loadVideo(ctx, w, r)
	if !ok {
		return
	}

	viewer, authed := auth.AccountFromContext(ctx)
	if !video.Published && (!authed || !viewer.ID.Owns(video.OwnerID)) {
		respondError(ctx, w, apperror.NotFound("video not found"))
		return
	}

	logger := logging.FromContext(ctx)
	if err := h.Videos.IncrementViews(ctx, video.ID); err != nil {
		logger.Warn("increment view count", "videoId", video.ID, "error", err)
	} else {
		video.Views++
	}
	if authed {
		if err := h.History.Record(ctx, viewer.ID, video.ID); err != nil {
			logger.Warn("record watch history", "videoId", video.ID, "error", err)
		}
	}

	respondJSON(ctx, w, http.StatusOK, "video", toVideoJSON(video))
}

// Update handles PATCH /api/v1/videos/{videoId}. Metadata always updates;
// a thumbnail file, when present, replaces the old one remotely.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	video, ok := h.loadVideo(ctx, w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(video.OwnerID) {
		respondError(ctx, w, apperror.Forbidden("only the owner can update a video"))
		return
	}

	staged, err := h.Stager.Stage(r, map[string]uploads.Rule{
		"thumbnail": uploads.ImageRule(false, 0),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer staged.Cleanup(ctx)
	staged.Watch(ctx)

	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		video.Title = title
	}
	if description := strings.TrimSpace(r.FormValue("description")); description != "" {
		video.Description = description
	}
	if err := validateVideoMetadata(video.Title, video.Description); err != nil {
		respondError(ctx, w, err)
		return
	}
	video.UpdatedAt = h.now()

	previousThumb := ""
	if _, hasThumb := staged.File("thumbnail"); hasThumb {
		assets, err := uploads.Transfer(ctx, h.Media, staged)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		thumb := assets["thumbnail"]
		previousThumb = video.ThumbnailID
		video.ThumbnailURL, video.ThumbnailID = thumb.URL, thumb.PublicID

		if err := h.Videos.Update(ctx, video); err != nil {
			uploads.Compensate(context.WithoutCancel(ctx), h.Media, assets)
			respondError(ctx, w, apperror.Internal("update video", err))
			return
		}
	} else if err := h.Videos.Update(ctx, video); err != nil {
		respondError(ctx, w, apperror.Internal("update video", err))
		return
	}

	if previousThumb != "" {
		if err := h.Media.Delete(ctx, previousThumb, storage.KindImage); err != nil {
			logging.FromContext(ctx).Warn("delete replaced thumbnail", "publicId", previousThumb, "error", err)
		}
	}

	respondJSON(ctx, w, http.StatusOK, "video updated", toVideoJSON(video))
}

// Delete handles DELETE /api/v1/videos/{videoId}. Remote media deletes are
// best-effort; the row cascade is transactional.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	video, ok := h.loadVideo(ctx, w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(video.OwnerID) {
		respondError(ctx, w, apperror.Forbidden("only the owner can delete a video"))
		return
	}

	logger := logging.FromContext(ctx)
	if video.VideoID != "" {
		if err := h.Media.Delete(ctx, video.VideoID, storage.KindVideo); err != nil {
			logger.Warn("delete remote video file", "publicId", video.VideoID, "error", err)
		}
	}
	if video.ThumbnailID != "" {
		if err := h.Media.Delete(ctx, video.ThumbnailID, storage.KindImage); err != nil {
			logger.Warn("delete remote thumbnail", "publicId", video.ThumbnailID, "error", err)
		}
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("video not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("delete video", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "video deleted", nil)
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	video, ok := h.loadVideo(ctx, w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(video.OwnerID) {
		respondError(ctx, w, apperror.Forbidden("only the owner can publish a video"))
		return
	}

	video.Published = !video.Published
	if err := h.Videos.SetPublished(ctx, video.ID, video.Published); err != nil {
		respondError(ctx, w, apperror.Internal("toggle publish state", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "publish state toggled", toVideoJSON(video))
}

func validateVideoMetadata(title, description string) error {
	if len(title) > maxVideoTitleLength {
		return apperror.BadRequest(fmt.Sprintf("title exceeds the %d character limit", maxVideoTitleLength))
	}
	if len(description) > maxVideoDescriptionLength {
		return apperror.BadRequest(fmt.Sprintf("description exceeds the %d character limit", maxVideoDescriptionLength))
	}
	return nil
}

// loadVideo resolves the {videoId} path parameter and writes the error
// response itself when the video cannot be served.
func (h VideoHandler) loadVideo(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Video, bool) {
	id := pathParam(r, "videoId")
	if id == "" {
		respondError(ctx, w, apperror.BadRequest("video id is required"))
		return models.Video{}, false
	}

	video, err := h.Videos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("video not found"))
			return models.Video{}, false
		}
		respondError(ctx, w, apperror.Internal("look up video", err))
		return models.Video{}, false
	}
	return video, true
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
