package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/apperror"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

const maxTweetLength = 280

// TweetHandler implements the channel microblog endpoints.
type TweetHandler struct {
	Tweets TweetStore

	NowFunc func() time.Time
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	content, err := decodeContent(r, maxTweetLength)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		AuthorID:  account.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Tweets.Create(ctx, tweet); err != nil {
		respondError(ctx, w, apperror.Internal("create tweet", err))
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "tweet posted", toTweetJSON(tweet))
}

// ListByUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := pathParam(r, "userId")
	if userID == "" {
		respondError(ctx, w, apperror.BadRequest("user id is required"))
		return
	}

	tweets, err := h.Tweets.ListByAuthor(ctx, models.AccountID(userID))
	if err != nil {
		respondError(ctx, w, apperror.Internal("list tweets", err))
		return
	}

	out := make([]tweetJSON, 0, len(tweets))
	for _, t := range tweets {
		out = append(out, toTweetJSON(t))
	}
	respondJSON(ctx, w, http.StatusOK, "tweets", out)
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	tweet, ok := h.loadTweet(w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(tweet.AuthorID) {
		respondError(ctx, w, apperror.Forbidden("only the author can edit a tweet"))
		return
	}

	content, err := decodeContent(r, maxTweetLength)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	if err := h.Tweets.UpdateContent(ctx, tweet.ID, content, now); err != nil {
		respondError(ctx, w, apperror.Internal("update tweet", err))
		return
	}

	tweet.Content = content
	tweet.UpdatedAt = now
	respondJSON(ctx, w, http.StatusOK, "tweet updated", toTweetJSON(tweet))
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	tweet, ok := h.loadTweet(w, r)
	if !ok {
		return
	}
	if !account.ID.Owns(tweet.AuthorID) {
		respondError(ctx, w, apperror.Forbidden("only the author can delete a tweet"))
		return
	}

	if err := h.Tweets.Delete(ctx, tweet.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("tweet not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("delete tweet", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "tweet deleted", nil)
}

func (h TweetHandler) loadTweet(w http.ResponseWriter, r *http.Request) (models.Tweet, bool) {
	ctx := r.Context()

	id := pathParam(r, "tweetId")
	if id == "" {
		respondError(ctx, w, apperror.BadRequest("tweet id is required"))
		return models.Tweet{}, false
	}

	tweet, err := h.Tweets.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("tweet not found"))
			return models.Tweet{}, false
		}
		respondError(ctx, w, apperror.Internal("look up tweet", err))
		return models.Tweet{}, false
	}
	return tweet, true
}

func (h TweetHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
