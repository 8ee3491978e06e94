package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"regexp"
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

// RefreshTokenCookie is the cookie the refresh token is delivered in.
const RefreshTokenCookie = "refreshToken"

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// UserHandler implements registration, authentication and account endpoints.
type UserHandler struct {
	Accounts      AccountStore
	Videos        VideoStore
	Subscriptions SubscriptionStore
	History       HistoryStore
	Tokens        TokenIssuer
	Hasher        PasswordHasher
	Media         storage.MediaStore
	Stager        uploads.Stager
	Limiter       RateLimiter

	AccessTokenMaxAge  int
	RefreshTokenMaxAge int

	NowFunc func() time.Time
}

// Register handles POST /api/v1/users/register. The request is multipart so
// it can carry optional avatar and cover images alongside the credentials.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "register") {
		respondRateLimited(w, r)
		return
	}

	staged, err := h.Stager.Stage(r, map[string]uploads.Rule{
		"avatar": uploads.ImageRule(false, 0),
		"cover":  uploads.ImageRule(false, 0),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer staged.Cleanup(ctx)
	staged.Watch(ctx)

	handle := strings.ToLower(strings.TrimSpace(r.FormValue("handle")))
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	displayName := strings.TrimSpace(r.FormValue("displayName"))
	password := r.FormValue("password")

	if err := validateRegistration(handle, email, displayName, password); err != nil {
		respondError(ctx, w, err)
		return
	}

	digest, err := h.Hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			respondError(ctx, w, apperror.BadRequest("password must be at most 72 bytes"))
			return
		}
		respondError(ctx, w, apperror.Internal("hash password", err))
		return
	}

	assets, err := uploads.Transfer(ctx, h.Media, staged)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	now := h.now()
	account := models.Account{
		ID:           models.AccountID(uuid.NewString()),
		Handle:       handle,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: digest,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if avatar, ok := assets["avatar"]; ok {
		account.AvatarURL, account.AvatarID = avatar.URL, avatar.PublicID
	}
	if cover, ok := assets["cover"]; ok {
		account.CoverURL, account.CoverID = cover.URL, cover.PublicID
	}

	if err := h.Accounts.Create(ctx, account); err != nil {
		uploads.Compensate(context.WithoutCancel(ctx), h.Media, assets)
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperror.Conflict("handle or email already registered"))
			return
		}
		respondError(ctx, w, apperror.Internal("create account", err))
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "account registered", toAccountJSON(account))
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "login") {
		respondRateLimited(w, r)
		return
	}

	var req struct {
		Identifier string `json:"identifier"`
		Handle     string `json:"handle"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperror.BadRequest("invalid request body"))
		return
	}

	identifier := firstNonEmpty(req.Identifier, req.Handle, req.Email)
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || req.Password == "" {
		respondError(ctx, w, apperror.BadRequest("handle or email and password are required"))
		return
	}

	account, err := h.Accounts.FindByHandleOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.Unauthorized("invalid credentials"))
			return
		}
		respondError(ctx, w, apperror.Internal("look up account", err))
		return
	}

	if !h.Hasher.Verify(account.PasswordHash, req.Password) {
		respondError(ctx, w, apperror.Unauthorized("invalid credentials"))
		return
	}

	h.issueSession(ctx, w, account)
}

// Logout handles DELETE /api/v1/users/logout. Clearing the stored refresh
// token is what actually revokes the session; the cookies are a courtesy.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	if err := h.Accounts.UpdateRefreshToken(ctx, account.ID, ""); err != nil {
		respondError(ctx, w, apperror.Internal("clear refresh token", err))
		return
	}

	h.clearAuthCookies(w)
	respondJSON(ctx, w, http.StatusOK, "logged out", nil)
}

// Refresh handles POST /api/v1/users/refresh-access-token. A refresh token
// is accepted only while it is the one stored on the account; rotation
// supersedes the previous token immediately.
func (h UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tokenStr := refreshTokenFromRequest(r)
	if tokenStr == "" {
		respondError(ctx, w, apperror.Unauthorized("refresh token is required"))
		return
	}

	accountID, err := h.Tokens.VerifyRefreshToken(tokenStr)
	if err != nil {
		respondError(ctx, w, apperror.Unauthorized("invalid or expired refresh token"))
		return
	}

	account, err := h.Accounts.FindByID(ctx, accountID)
	if err != nil {
		respondError(ctx, w, apperror.Unauthorized("invalid or expired refresh token"))
		return
	}

	if account.RefreshToken == "" || account.RefreshToken != tokenStr {
		respondError(ctx, w, apperror.Unauthorized("refresh token has been superseded"))
		return
	}

	h.issueSession(ctx, w, account)
}

// CurrentUser handles GET /api/v1/users/get-current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)
	respondJSON(ctx, w, http.StatusOK, "current user", toAccountJSON(account))
}

// ChangePassword handles PATCH /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperror.BadRequest("invalid request body"))
		return
	}

	if !h.Hasher.Verify(account.PasswordHash, req.OldPassword) {
		respondError(ctx, w, apperror.Unauthorized("current password is incorrect"))
		return
	}
	if len(req.NewPassword) < 8 {
		respondError(ctx, w, apperror.BadRequest("password must be at least 8 characters"))
		return
	}

	digest, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			respondError(ctx, w, apperror.BadRequest("password must be at most 72 bytes"))
			return
		}
		respondError(ctx, w, apperror.Internal("hash password", err))
		return
	}

	if err := h.Accounts.UpdatePassword(ctx, account.ID, digest); err != nil {
		respondError(ctx, w, apperror.Internal("update password", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "password changed", nil)
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperror.BadRequest("invalid request body"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	displayName := strings.TrimSpace(req.DisplayName)
	if email == "" || displayName == "" {
		respondError(ctx, w, apperror.BadRequest("email and displayName are required"))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondError(ctx, w, apperror.BadRequest("invalid email address"))
		return
	}

	if err := h.Accounts.UpdateProfile(ctx, account.ID, email, displayName); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperror.Conflict("email already registered"))
			return
		}
		respondError(ctx, w, apperror.Internal("update account", err))
		return
	}

	account.Email, account.DisplayName = email, displayName
	respondJSON(ctx, w, http.StatusOK, "account updated", toAccountJSON(account))
}

// UpdateAvatar handles PATCH /api/v1/users/update-avatar.
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar")
}

// UpdateCover handles PATCH /api/v1/users/update-cover.
func (h UserHandler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "cover")
}

// updateImage swaps one of the account's profile images: stage, transfer,
// persist, then best-effort delete of the replaced remote file.
func (h UserHandler) updateImage(w http.ResponseWriter, r *http.Request, field string) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	staged, err := h.Stager.Stage(r, map[string]uploads.Rule{
		field: uploads.ImageRule(true, 0),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer staged.Cleanup(ctx)
	staged.Watch(ctx)

	assets, err := uploads.Transfer(ctx, h.Media, staged)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	asset := assets[field]

	var previousID string
	if field == "avatar" {
		previousID = account.AvatarID
		err = h.Accounts.UpdateAvatar(ctx, account.ID, asset.URL, asset.PublicID)
		account.AvatarURL, account.AvatarID = asset.URL, asset.PublicID
	} else {
		previousID = account.CoverID
		err = h.Accounts.UpdateCover(ctx, account.ID, asset.URL, asset.PublicID)
		account.CoverURL, account.CoverID = asset.URL, asset.PublicID
	}
	if err != nil {
		uploads.Compensate(context.WithoutCancel(ctx), h.Media, assets)
		respondError(ctx, w, apperror.Internal("update "+field, err))
		return
	}

	if previousID != "" {
		if err := h.Media.Delete(ctx, previousID, storage.KindImage); err != nil {
			logging.FromContext(ctx).Warn("delete replaced image", "publicId", previousID, "error", err)
		}
	}

	respondJSON(ctx, w, http.StatusOK, field+" updated", toAccountJSON(account))
}

// Channel handles GET /api/v1/users/channel/{handle}.
func (h UserHandler) Channel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	handle := strings.ToLower(pathParam(r, "handle"))
	if handle == "" {
		respondError(ctx, w, apperror.BadRequest("channel handle is required"))
		return
	}

	account, err := h.Accounts.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, apperror.NotFound("channel not found"))
			return
		}
		respondError(ctx, w, apperror.Internal("look up channel", err))
		return
	}

	subscribers, err := h.Subscriptions.Count(ctx, account.ID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("count subscribers", err))
		return
	}

	var isSubscribed bool
	if viewer, ok := auth.AccountFromContext(ctx); ok {
		isSubscribed, err = h.Subscriptions.IsSubscribed(ctx, viewer.ID, account.ID)
		if err != nil {
			respondError(ctx, w, apperror.Internal("check subscription", err))
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, "channel profile", channelJSON{
		accountJSON:  toAccountJSON(account),
		Subscribers:  subscribers,
		IsSubscribed: isSubscribed,
	})
}

// WatchHistory handles GET /api/v1/users/watch-history.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	videos, err := h.History.ListVideos(ctx, account.ID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("list watch history", err))
		return
	}

	respondJSON(ctx, w, http.StatusOK, "watch history", toVideoListJSON(videos))
}

// DeleteAccount handles DELETE /api/v1/users/delete-account. The caller must
// re-confirm their password. Remote media deletes are best-effort and run
// before the row cascade, which is a single transaction.
func (h UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account, _ := auth.AccountFromContext(ctx)

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperror.BadRequest("invalid request body"))
		return
	}

	if !h.Hasher.Verify(account.PasswordHash, req.Password) {
		respondError(ctx, w, apperror.Unauthorized("password is incorrect"))
		return
	}

	ctx, span := logging.StartSpan(ctx, "users.delete_account")

	videos, err := h.Videos.ListByOwner(ctx, account.ID)
	if err != nil {
		span.Fail(err)
		respondError(ctx, w, apperror.Internal("enumerate account media", err))
		return
	}

	logger := logging.FromContext(ctx)
	deleteRemote := func(publicID string, kind storage.Kind) {
		if publicID == "" {
			return
		}
		if err := h.Media.Delete(ctx, publicID, kind); err != nil {
			logger.Warn("delete remote media during account removal", "publicId", publicID, "error", err)
		}
	}
	for _, v := range videos {
		deleteRemote(v.VideoID, storage.KindVideo)
		deleteRemote(v.ThumbnailID, storage.KindImage)
	}
	deleteRemote(account.AvatarID, storage.KindImage)
	deleteRemote(account.CoverID, storage.KindImage)

	if err := h.Accounts.DeleteCascade(ctx, account.ID); err != nil {
		span.Fail(err)
		respondError(ctx, w, apperror.Internal("delete account", err))
		return
	}

	span.End()
	h.clearAuthCookies(w)
	respondJSON(ctx, w, http.StatusOK, "account deleted", nil)
}

// issueSession rotates the refresh token, sets both cookies and returns the
// token pair alongside the account.
func (h UserHandler) issueSession(ctx context.Context, w http.ResponseWriter, account models.Account) {
	accessToken, err := h.Tokens.IssueAccessToken(account)
	if err != nil {
		respondError(ctx, w, apperror.Internal("issue access token", err))
		return
	}

	refreshToken, err := h.Tokens.IssueRefreshToken(account.ID)
	if err != nil {
		respondError(ctx, w, apperror.Internal("issue refresh token", err))
		return
	}

	if err := h.Accounts.UpdateRefreshToken(ctx, account.ID, refreshToken); err != nil {
		respondError(ctx, w, apperror.Internal("store refresh token", err))
		return
	}

	h.setAuthCookies(w, accessToken, refreshToken)
	respondJSON(ctx, w, http.StatusOK, "authenticated", map[string]any{
		"account":      toAccountJSON(account),
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

func (h UserHandler) setAuthCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   h.AccessTokenMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   h.RefreshTokenMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h UserHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{auth.AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		return strings.TrimSpace(body.RefreshToken)
	}
	return ""
}

func validateRegistration(handle, email, displayName, password string) error {
	if !handlePattern.MatchString(handle) {
		return apperror.BadRequest("handle must be 3-30 lowercase letters, digits or underscores")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperror.BadRequest("invalid email address")
	}
	if displayName == "" || len(displayName) > 100 {
		return apperror.BadRequest("displayName is required and must be at most 100 characters")
	}
	if len(password) < 8 {
		return apperror.BadRequest("password must be at least 8 characters")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
