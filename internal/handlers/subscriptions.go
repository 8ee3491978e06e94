package handlers

import (
	"errors"
	"net/http"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// SubscriptionHandler implements channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Accounts      AccountStore
}

// Toggle handles POST /api/v1/subscriptions/channel/{channelId}. Subscribing
// to your own channel is rejected before any database work.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	channelID := models.AccountID(pathParam(r, "channelId"))
	if channelID == "" {
		respondError(ctx, w, apperror.BadRequest("channel id is required"))
		return
	}
	if account.ID.Owns(channelID) {
		respondError(ctx, w, apperror.BadRequest("cannot subscribe to your own channel"))
		return
	}

	if _, err := h.Accounts.FindByID(ctx, channelID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("channel not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("look up channel", err))
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, account.ID, channelID)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperror.Conflict("subscription already recorded"))
			return
		}
		respondError(ctx, w, apperror.Internal("toggle subscription", err))
		return
	}

	count, err := h.Subscriptions.Count(ctx, channelID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("count subscribers", err))
		return
	}

	message := "unsubscribed"
	if subscribed {
		message = "subscribed"
	}
	respondJSON(ctx, w, http.StatusOK, message, map[string]any{
		"subscribed":  subscribed,
		"subscribers": count,
	})
}

// SubscriberCount handles GET /api/v1/subscriptions/channel/{channelId}. The
// count is public; isSubscribed is filled only for authenticated callers.
func (h SubscriptionHandler) SubscriberCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID := models.AccountID(pathParam(r, "channelId"))
	if channelID == "" {
		respondError(ctx, w, apperror.BadRequest("channel id is required"))
		return
	}

	if _, err := h.Accounts.FindByID(ctx, channelID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("channel not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("look up channel", err))
		return
	}

	count, err := h.Subscriptions.Count(ctx, channelID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("count subscribers", err))
		return
	}

	isSubscribed := false
	if viewer, ok := auth.AccountFromContext(ctx); ok {
		isSubscribed, err = h.Subscriptions.IsSubscribed(ctx, viewer.ID, channelID)
		if err != nil {
			respondError(ctx, w, apperror.Internal("check subscription", err))
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, "subscriber count", map[string]any{
		"subscribers":  count,
		"isSubscribed": isSubscribed,
	})
}

// Subscribed handles GET /api/v1/subscriptions/subscribed and lists the
// channels the caller follows.
func (h SubscriptionHandler) Subscribed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	channels, err := h.Subscriptions.ListSubscribedChannels(ctx, account.ID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("list subscribed channels", err))
		return
	}

	out := make([]accountJSON, 0, len(channels))
	for _, c := range channels {
		out = append(out, toAccountJSON(c))
	}
	respondJSON(ctx, w, http.StatusOK, "subscribed channels", out)
}
