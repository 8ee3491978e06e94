package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipstream/backend/internal/auth"
)

// NewRouter assembles the HTTP surface. Each route group picks one of the
// three gating modes: Require for owner and account operations, Optional
// where anonymous reads are fine but identity refines the response, and
// GuestOnly for the credential endpoints.
func NewRouter(deps Dependencies, gate auth.Middleware, started time.Time) http.Handler {
	users := UserHandler{
		Accounts:           deps.Accounts,
		Videos:             deps.Videos,
		Subscriptions:      deps.Subscriptions,
		History:            deps.History,
		Tokens:             deps.Tokens,
		Hasher:             deps.Hasher,
		Media:              deps.Media,
		Stager:             deps.Stager,
		Limiter:            deps.Limiter,
		AccessTokenMaxAge:  deps.AccessTokenMaxAge,
		RefreshTokenMaxAge: deps.RefreshTokenMaxAge,
	}
	videos := VideoHandler{
		Videos:  deps.Videos,
		History: deps.History,
		Media:   deps.Media,
		Stager:  deps.Stager,
	}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos}
	tweets := TweetHandler{Tweets: deps.Tweets}
	likes := LikeHandler{Likes: deps.Likes}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions, Accounts: deps.Accounts}
	playlists := PlaylistHandler{Playlists: deps.Playlists, Videos: deps.Videos}
	dashboard := DashboardHandler{Stats: deps.Stats, Videos: deps.Videos}
	health := HealthHandler{Pinger: deps.DBPinger, Started: started}

	r := chi.NewRouter()

	r.Get("/healthz", health.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(gate.GuestOnly).Post("/register", users.Register)
			r.With(gate.GuestOnly).Post("/login", users.Login)
			r.With(gate.GuestOnly).Post("/refresh-access-token", users.Refresh)

			r.With(gate.Optional).Get("/channel/{handle}", users.Channel)

			r.Group(func(r chi.Router) {
				r.Use(gate.Require)
				r.Delete("/logout", users.Logout)
				r.Get("/get-current-user", users.CurrentUser)
				r.Patch("/change-password", users.ChangePassword)
				r.Patch("/update-account", users.UpdateAccount)
				r.Patch("/update-avatar", users.UpdateAvatar)
				r.Patch("/update-cover", users.UpdateCover)
				r.Get("/watch-history", users.WatchHistory)
				r.Delete("/delete-account", users.DeleteAccount)
			})
		})

		r.Route("/videos", func(r chi.Router) {
			r.With(gate.Optional).Get("/", videos.List)
			r.With(gate.Optional).Get("/{videoId}", videos.Get)

			r.Group(func(r chi.Router) {
				r.Use(gate.Require)
				r.Post("/", videos.Create)
				r.Patch("/{videoId}", videos.Update)
				r.Delete("/{videoId}", videos.Delete)
				r.Patch("/toggle/publish/{videoId}", videos.TogglePublish)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.With(gate.Optional).Get("/video/{videoId}", comments.ListByVideo)

			r.Group(func(r chi.Router) {
				r.Use(gate.Require)
				r.Post("/video/{videoId}", comments.Create)
				r.Patch("/{commentId}", comments.Update)
				r.Delete("/{commentId}", comments.Delete)
			})
		})

		r.Route("/tweets", func(r chi.Router) {
			r.With(gate.Optional).Get("/user/{userId}", tweets.ListByUser)

			r.Group(func(r chi.Router) {
				r.Use(gate.Require)
				r.Post("/", tweets.Create)
				r.Patch("/{tweetId}", tweets.Update)
				r.Delete("/{tweetId}", tweets.Delete)
			})
		})

		r.Route("/likes", func(r chi.Router) {
			r.Use(gate.Require)
			r.Post("/toggle/video/{videoId}", likes.ToggleVideo)
			r.Post("/toggle/comment/{commentId}", likes.ToggleComment)
			r.Post("/toggle/tweet/{tweetId}", likes.ToggleTweet)
			r.Get("/videos", likes.LikedVideos)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.With(gate.Optional).Get("/{playlistId}", playlists.Get)
			r.With(gate.Optional).Get("/user/{userId}", playlists.ListByUser)

			r.Group(func(r chi.Router) {
				r.Use(gate.Require)
				r.Post("/", playlists.Create)
				r.Patch("/{playlistId}", playlists.Update)
				r.Patch("/add/{videoId}/{playlistId}", playlists.AddVideo)
				r.Patch("/remove/{videoId}/{playlistId}", playlists.RemoveVideo)
				r.Delete("/{playlistId}", playlists.Delete)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.With(gate.Optional).Get("/channel/{channelId}", subscriptions.SubscriberCount)
			r.With(gate.Require).Post("/channel/{channelId}", subscriptions.Toggle)
			r.With(gate.Require).Get("/subscribed", subscriptions.Subscribed)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(gate.Require)
			r.Get("/stats", dashboard.ChannelStats)
			r.Get("/videos", dashboard.ChannelVideos)
		})
	})

	return r
}
