package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipstream/backend/internal/models"
)

// AccessTokenCookie is the cookie the access token is delivered in.
const AccessTokenCookie = "accessToken"

type contextKey string

const accountKey contextKey = "account"

// AccountResolver loads the account a verified token points at.
type AccountResolver interface {
	FindByID(ctx context.Context, id models.AccountID) (models.Account, error)
}

// Rejecter renders an error response for a gated request. Implemented by the
// handlers package so rejections use the uniform envelope.
type Rejecter interface {
	Reject(w http.ResponseWriter, r *http.Request, status int, message string)
}

// Middleware resolves request identity from an access token and provides the
// three gating modes built on that single resolve step.
type Middleware struct {
	Tokens   *TokenService
	Accounts AccountResolver
	Reject   Rejecter
}

// Require attaches the resolved account to the context or rejects with 401.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := m.resolve(r)
		if !ok {
			m.Reject.Reject(w, r, http.StatusUnauthorized, "valid authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// Optional attaches the account when a valid token is present and proceeds
// unauthenticated otherwise. It never rejects.
func (m Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if account, ok := m.resolve(r); ok {
			r = r.WithContext(WithAccount(r.Context(), account))
		}
		next.ServeHTTP(w, r)
	})
}

// GuestOnly rejects with 409 when a valid account is already attached.
// Used to block login and register for already-authenticated callers.
func (m Middleware) GuestOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.resolve(r); ok {
			m.Reject.Reject(w, r, http.StatusConflict, "already authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolve is the shared extract-and-verify step: read the token from the
// cookie or the Authorization header, verify it, and load the account.
// It reports failure instead of returning errors; no gating mode needs them.
func (m Middleware) resolve(r *http.Request) (models.Account, bool) {
	tokenStr := tokenFromRequest(r)
	if tokenStr == "" || m.Tokens == nil || m.Accounts == nil {
		return models.Account{}, false
	}

	claims, err := m.Tokens.VerifyAccessToken(tokenStr)
	if err != nil {
		return models.Account{}, false
	}

	account, err := m.Accounts.FindByID(r.Context(), models.AccountID(claims.Subject))
	if err != nil {
		return models.Account{}, false
	}

	return account, true
}

// tokenFromRequest prefers the HttpOnly cookie, then the bearer header.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// WithAccount stores the resolved account on the context.
func WithAccount(ctx context.Context, account models.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext retrieves the account attached by the middleware.
// The second return is false for anonymous requests.
func AccountFromContext(ctx context.Context) (models.Account, bool) {
	account, ok := ctx.Value(accountKey).(models.Account)
	return account, ok && account.ID != ""
}
