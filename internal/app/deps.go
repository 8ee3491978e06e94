package app

import (
	"context"
	"fmt"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/config"
	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/handlers"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
	"github.com/clipstream/backend/internal/uploads"
)

// dbPinger adapts the pool to the health endpoint's Pinger interface.
type dbPinger struct {
	pool db.Pool
}

func (p dbPinger) Ping(ctx context.Context) error {
	return db.Ping(ctx, p.pool)
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers, plus the auth gate shared by the route groups.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, auth.Middleware, error) {
	tokens, err := auth.NewTokenService(cfg.AccessTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenSecret, cfg.RefreshTokenTTL)
	if err != nil {
		return handlers.Dependencies{}, auth.Middleware{}, err
	}

	media, err := storage.NewS3Store(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, auth.Middleware{}, fmt.Errorf("configure media storage: %w", err)
	}

	accounts := repositories.NewPostgresAccountRepository(pool)

	var limiter handlers.RateLimiter
	if cfg.RateLimitEnabled {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.RateLimitRequests, 10*time.Minute)
	}

	deps := handlers.Dependencies{
		Accounts:      accounts,
		Videos:        repositories.NewPostgresVideoRepository(pool),
		Comments:      repositories.NewPostgresCommentRepository(pool),
		Tweets:        repositories.NewPostgresTweetRepository(pool),
		Likes:         repositories.NewPostgresLikeRepository(pool),
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Playlists:     repositories.NewPostgresPlaylistRepository(pool),
		History:       repositories.NewPostgresHistoryRepository(pool),
		Stats:         repositories.NewPostgresStatsRepository(pool),

		Tokens:   tokens,
		Hasher:   auth.NewHasher(),
		Media:    media,
		Stager:   uploads.Stager{Dir: cfg.UploadDir},
		Limiter:  limiter,
		DBPinger: dbPinger{pool: pool},

		AccessTokenMaxAge:  int(cfg.AccessTokenTTL.Seconds()),
		RefreshTokenMaxAge: int(cfg.RefreshTokenTTL.Seconds()),
	}

	gate := auth.Middleware{
		Tokens:   tokens,
		Accounts: accounts,
		Reject:   handlers.Rejecter{},
	}

	return deps, gate, nil
}
