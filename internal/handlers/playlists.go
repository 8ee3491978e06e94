package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// PlaylistHandler implements playlist endpoints. A private playlist is
// indistinguishable from a missing one for anybody but its owner.
type PlaylistHandler struct {
	Playlists PlaylistStore
	Videos    VideoStore

	NowFunc func() time.Time
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      *bool  `json:"public"`
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperror.BadRequest("invalid request body"))
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(ctx, w, apperror.BadRequest("name is required"))
		return
	}

	public := true
	if req.Public != nil {
		public = *req.Public
	}

	now := h.now()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		OwnerID:     account.ID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Public:      public,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Playlists.Create(ctx, playlist); err != nil {
		respondError(ctx, w, apperror.Internal("create playlist", err))
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "playlist created", toPlaylistJSON(playlist))
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	if !h.visibleTo(ctx, playlist) {
		respondError(ctx, w, apperror.NotFound("playlist not found"))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "playlist", toPlaylistJSON(playlist))
}

// ListByUser handles GET /api/v1/playlists/user/{userId}. Private playlists
// appear only when the caller is listing their own.
func (h PlaylistHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := models.AccountID(pathParam(r, "userId"))
	if userID == "" {
		respondError(ctx, w, apperror.BadRequest("user id is required"))
		return
	}

	playlists, err := h.Playlists.ListByOwner(ctx, userID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("list playlists", err))
		return
	}

	viewer, authed := auth.AccountFromContext(ctx)
	out := make([]playlistJSON, 0, len(playlists))
	for _, p := range playlists {
		if !p.Public && (!authed || !viewer.ID.Owns(p.OwnerID)) {
			continue
		}
		out = append(out, toPlaylistJSON(p))
	}
	respondJSON(ctx, w, http.StatusOK, "playlists", out)
}

// Update handles PATCH /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(playlist.OwnerID) {
		respondError(ctx, w, apperror.NotFound("playlist not found"))
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperror.BadRequest("invalid request body"))
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		playlist.Name = name
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		playlist.Description = desc
	}
	if req.Public != nil {
		playlist.Public = *req.Public
	}
	playlist.UpdatedAt = h.now()

	if err := h.Playlists.Update(ctx, playlist); err != nil {
		respondError(ctx, w, apperror.Internal("update playlist", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "playlist updated", toPlaylistJSON(playlist))
}

// AddVideo handles PATCH /api/v1/playlists/add/{videoId}/{playlistId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(playlist.OwnerID) {
		respondError(ctx, w, apperror.NotFound("playlist not found"))
		return
	}

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

	if err := h.Playlists.AddVideo(ctx, playlist.ID, videoID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			respondError(ctx, w, apperror.Conflict("video already in playlist"))
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, apperror.NotFound("playlist or video not found"))
		default:
			respondError(ctx, w, apperror.Internal("add video to playlist", err))
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, "video added to playlist", nil)
}

// RemoveVideo handles PATCH /api/v1/playlists/remove/{videoId}/{playlistId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(playlist.OwnerID) {
		respondError(ctx, w, apperror.NotFound("playlist not found"))
		return
	}

	videoID := pathParam(r, "videoId")
	if videoID == "" {
		respondError(ctx, w, apperror.BadRequest("video id is required"))
		return
	}

	if err := h.Playlists.RemoveVideo(ctx, playlist.ID, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("video not in playlist"))
			return
		}
		respondError(ctx, w, apperror.Internal("remove video from playlist", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "video removed from playlist", nil)
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	playlist, ok := h.loadPlaylist(w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(playlist.OwnerID) {
		respondError(ctx, w, apperror.NotFound("playlist not found"))
		return
	}

	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("playlist not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("delete playlist", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "playlist deleted", nil)
}

// visibleTo reports whether the playlist may be shown to the current caller.
func (h PlaylistHandler) visibleTo(ctx context.Context, playlist models.Playlist) bool {
	if playlist.Public {
		return true
	}
	viewer, ok := auth.AccountFromContext(ctx)
	return ok && viewer.ID.Owns(playlist.OwnerID)
}

func (h PlaylistHandler) loadPlaylist(w http.ResponseWriter, r *http.Request) (models.Playlist, bool) {
	ctx := r.Context()

	id := pathParam(r, "playlistId")
	if id == "" {
		respondError(ctx, w, apperror.BadRequest("playlist id is required"))
		return models.Playlist{}, false
	}

	playlist, err := h.Playlists.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("playlist not found"))
			return models.Playlist{}, false
		}
		respondError(ctx, w, apperror.Internal("look up playlist", err))
		return models.Playlist{}, false
	}
	return playlist, true
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
