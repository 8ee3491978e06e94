package handlers

import (
	"net/http"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/auth"
)

// DashboardHandler implements the channel dashboard endpoints.
type DashboardHandler struct {
	Stats  StatsStore
	Videos VideoStore
}

// ChannelStats handles GET /api/v1/dashboard/stats.
func (h DashboardHandler) ChannelStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	stats, err := h.Stats.ChannelStats(ctx, account.ID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("aggregate channel stats", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "channel stats", statsJSON{
		TotalVideos:      stats.TotalVideos,
		TotalViews:       stats.TotalViews,
		TotalSubscribers: stats.TotalSubscribers,
		TotalLikes:       stats.TotalLikes,
	})
}

// ChannelVideos handles GET /api/v1/dashboard/videos, returning every video
// the caller owns, unpublished included.
func (h DashboardHandler) ChannelVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	videos, err := h.Videos.ListByOwner(ctx, account.ID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("list channel videos", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "channel videos", toVideoListJSON(videos))
}
