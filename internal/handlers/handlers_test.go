package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
	"github.com/clipstream/backend/internal/uploads"
)

// In-memory stores shared by the handler tests. Each one mirrors the
// semantics of its Postgres counterpart closely enough for the handlers to
// exercise their decision logic against it.

type memAccounts struct {
	mu       sync.Mutex
	accounts map[models.AccountID]models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[models.AccountID]models.Account)}
}

func (s *memAccounts) Create(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Handle == account.Handle || existing.Email == account.Email {
			return repositories.ErrConflict
		}
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *memAccounts) FindByID(_ context.Context, id models.AccountID) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	return account, nil
}

func (s *memAccounts) FindByHandle(_ context.Context, handle string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.Handle == handle {
			return account, nil
		}
	}
	return models.Account{}, repositories.ErrNotFound
}

func (s *memAccounts) FindByHandleOrEmail(_ context.Context, identifier string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.Handle == identifier || account.Email == identifier {
			return account, nil
		}
	}
	return models.Account{}, repositories.ErrNotFound
}

func (s *memAccounts) UpdateRefreshToken(_ context.Context, id models.AccountID, token string) error {
	return s.mutate(id, func(a *models.Account) { a.RefreshToken = token })
}

func (s *memAccounts) UpdatePassword(_ context.Context, id models.AccountID, passwordHash string) error {
	return s.mutate(id, func(a *models.Account) { a.PasswordHash = passwordHash })
}

func (s *memAccounts) UpdateProfile(_ context.Context, id models.AccountID, email, displayName string) error {
	return s.mutate(id, func(a *models.Account) { a.Email, a.DisplayName = email, displayName })
}

func (s *memAccounts) UpdateAvatar(_ context.Context, id models.AccountID, url, publicID string) error {
	return s.mutate(id, func(a *models.Account) { a.AvatarURL, a.AvatarID = url, publicID })
}

func (s *memAccounts) UpdateCover(_ context.Context, id models.AccountID, url, publicID string) error {
	return s.mutate(id, func(a *models.Account) { a.CoverURL, a.CoverID = url, publicID })
}

func (s *memAccounts) DeleteCascade(_ context.Context, id models.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *memAccounts) mutate(id models.AccountID, fn func(*models.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(&account)
	s.accounts[id] = account
	return nil
}

type memVideos struct {
	mu     sync.Mutex
	videos map[string]models.Video
}

func newMemVideos() *memVideos {
	return &memVideos{videos: make(map[string]models.Video)}
}

func (s *memVideos) Create(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	return nil
}

func (s *memVideos) FindByID(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *memVideos) List(_ context.Context, params repositories.ListVideosParams) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, v := range s.videos {
		if params.OwnerID != "" && v.OwnerID != params.OwnerID {
			continue
		}
		ownList := params.OwnerID != "" && params.OwnerID == params.ViewerID
		if !v.Published && !ownList {
			continue
		}
		if params.Keyword != "" {
			keyword := strings.ToLower(params.Keyword)
			if !strings.Contains(strings.ToLower(v.Title), keyword) &&
				!strings.Contains(strings.ToLower(v.Description), keyword) {
				continue
			}
		}
		out = append(out, v)
	}
	switch params.SortBy {
	case "views":
		sort.Slice(out, func(i, j int) bool { return out[i].Views > out[j].Views })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if strings.EqualFold(params.SortType, "asc") {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (s *memVideos) ListByOwner(_ context.Context, owner models.AccountID) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, v := range s.videos {
		if v.OwnerID == owner {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memVideos) Update(_ context.Context, video models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.videos[video.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	existing.Title = video.Title
	existing.Description = video.Description
	existing.ThumbnailURL = video.ThumbnailURL
	existing.ThumbnailID = video.ThumbnailID
	existing.UpdatedAt = video.UpdatedAt
	s.videos[video.ID] = existing
	return nil
}

func (s *memVideos) SetPublished(_ context.Context, id string, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Published = published
	s.videos[id] = video
	return nil
}

func (s *memVideos) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Views++
	s.videos[id] = video
	return nil
}

func (s *memVideos) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

type memComments struct {
	mu       sync.Mutex
	comments map[string]models.Comment
}

func newMemComments() *memComments {
	return &memComments{comments: make(map[string]models.Comment)}
}

func (s *memComments) Create(_ context.Context, comment models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID] = comment
	return nil
}

func (s *memComments) FindByID(_ context.Context, id string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return comment, nil
}

func (s *memComments) ListByVideo(_ context.Context, videoID string, _, _ int) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Comment
	for _, c := range s.comments {
		if c.VideoID == videoID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memComments) UpdateContent(_ context.Context, id, content string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.comments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	comment.Content = content
	comment.UpdatedAt = updatedAt
	s.comments[id] = comment
	return nil
}

func (s *memComments) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

type memTweets struct {
	mu     sync.Mutex
	tweets map[string]models.Tweet
}

func newMemTweets() *memTweets {
	return &memTweets{tweets: make(map[string]models.Tweet)}
}

func (s *memTweets) Create(_ context.Context, tweet models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweets[tweet.ID] = tweet
	return nil
}

func (s *memTweets) FindByID(_ context.Context, id string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tweet, ok := s.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	return tweet, nil
}

func (s *memTweets) ListByAuthor(_ context.Context, author models.AccountID) ([]models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Tweet
	for _, t := range s.tweets {
		if t.AuthorID == author {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memTweets) UpdateContent(_ context.Context, id, content string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tweet, ok := s.tweets[id]
	if !ok {
		return repositories.ErrNotFound
	}
	tweet.Content = content
	tweet.UpdatedAt = updatedAt
	s.tweets[id] = tweet
	return nil
}

func (s *memTweets) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tweets[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.tweets, id)
	return nil
}

type likeKey struct {
	account  models.AccountID
	target   models.LikeTarget
	targetID string
}

type memLikes struct {
	mu    sync.Mutex
	likes map[likeKey]struct{}
}

func newMemLikes() *memLikes {
	return &memLikes{likes: make(map[likeKey]struct{})}
}

func (s *memLikes) Toggle(_ context.Context, account models.AccountID, target models.LikeTarget, targetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := likeKey{account: account, target: target, targetID: targetID}
	if _, ok := s.likes[key]; ok {
		delete(s.likes, key)
		return false, nil
	}
	s.likes[key] = struct{}{}
	return true, nil
}

func (s *memLikes) CountForTarget(_ context.Context, target models.LikeTarget, targetID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for key := range s.likes {
		if key.target == target && key.targetID == targetID {
			count++
		}
	}
	return count, nil
}

func (s *memLikes) ListLikedVideos(context.Context, models.AccountID) ([]models.Video, error) {
	return nil, nil
}

type subKey struct {
	subscriber models.AccountID
	channel    models.AccountID
}

type memSubscriptions struct {
	mu       sync.Mutex
	accounts *memAccounts
	subs     map[subKey]struct{}
}

func newMemSubscriptions(accounts *memAccounts) *memSubscriptions {
	return &memSubscriptions{accounts: accounts, subs: make(map[subKey]struct{})}
}

func (s *memSubscriptions) Toggle(_ context.Context, subscriber, channel models.AccountID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := subKey{subscriber: subscriber, channel: channel}
	if _, ok := s.subs[key]; ok {
		delete(s.subs, key)
		return false, nil
	}
	s.subs[key] = struct{}{}
	return true, nil
}

func (s *memSubscriptions) Count(_ context.Context, channel models.AccountID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for key := range s.subs {
		if key.channel == channel {
			count++
		}
	}
	return count, nil
}

func (s *memSubscriptions) IsSubscribed(_ context.Context, subscriber, channel models.AccountID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[subKey{subscriber: subscriber, channel: channel}]
	return ok, nil
}

func (s *memSubscriptions) ListSubscribedChannels(ctx context.Context, subscriber models.AccountID) ([]models.Account, error) {
	s.mu.Lock()
	var channels []models.AccountID
	for key := range s.subs {
		if key.subscriber == subscriber {
			channels = append(channels, key.channel)
		}
	}
	s.mu.Unlock()

	var out []models.Account
	for _, id := range channels {
		account, err := s.accounts.FindByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, account)
	}
	return out, nil
}

type memPlaylists struct {
	mu        sync.Mutex
	playlists map[string]models.Playlist
}

func newMemPlaylists() *memPlaylists {
	return &memPlaylists{playlists: make(map[string]models.Playlist)}
}

func (s *memPlaylists) Create(_ context.Context, playlist models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[playlist.ID] = playlist
	return nil
}

func (s *memPlaylists) FindByID(_ context.Context, id string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	return playlist, nil
}

func (s *memPlaylists) ListByOwner(_ context.Context, owner models.AccountID) ([]models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Playlist
	for _, p := range s.playlists {
		if p.OwnerID == owner {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPlaylists) Update(_ context.Context, playlist models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playlists[playlist.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.playlists[playlist.ID] = playlist
	return nil
}

func (s *memPlaylists) AddVideo(_ context.Context, playlistID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist, ok := s.playlists[playlistID]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, id := range playlist.VideoIDs {
		if id == videoID {
			return repositories.ErrConflict
		}
	}
	playlist.VideoIDs = append(playlist.VideoIDs, videoID)
	s.playlists[playlistID] = playlist
	return nil
}

func (s *memPlaylists) RemoveVideo(_ context.Context, playlistID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist, ok := s.playlists[playlistID]
	if !ok {
		return repositories.ErrNotFound
	}
	for i, id := range playlist.VideoIDs {
		if id == videoID {
			playlist.VideoIDs = append(playlist.VideoIDs[:i], playlist.VideoIDs[i+1:]...)
			s.playlists[playlistID] = playlist
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (s *memPlaylists) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.playlists[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.playlists, id)
	return nil
}

type memHistory struct {
	mu      sync.Mutex
	videos  *memVideos
	entries []models.WatchEntry
}

func newMemHistory(videos *memVideos) *memHistory {
	return &memHistory{videos: videos}
}

func (s *memHistory) Record(_ context.Context, account models.AccountID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.AccountID == account && e.VideoID == videoID {
			s.entries[i].WatchedAt = time.Now()
			return nil
		}
	}
	s.entries = append(s.entries, models.WatchEntry{AccountID: account, VideoID: videoID, WatchedAt: time.Now()})
	return nil
}

func (s *memHistory) ListVideos(ctx context.Context, account models.AccountID) ([]models.Video, error) {
	s.mu.Lock()
	var ids []string
	for _, e := range s.entries {
		if e.AccountID == account {
			ids = append(ids, e.VideoID)
		}
	}
	s.mu.Unlock()

	var out []models.Video
	for _, id := range ids {
		video, err := s.videos.FindByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, video)
	}
	return out, nil
}

type memStats struct {
	stats models.ChannelStats
}

func (s *memStats) ChannelStats(context.Context, models.AccountID) (models.ChannelStats, error) {
	return s.stats, nil
}

type memMedia struct {
	mu      sync.Mutex
	uploads int
	deletes []string
}

func (s *memMedia) Upload(_ context.Context, localPath string, kind storage.Kind) (storage.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	return storage.Asset{URL: "https://cdn.test/" + localPath, PublicID: "key/" + localPath, Kind: kind}, nil
}

func (s *memMedia) Delete(_ context.Context, publicID string, _ storage.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, publicID)
	return nil
}

// testEnv bundles the fakes with a fully-routed handler, mirroring the wiring
// the app package performs in production.
type testEnv struct {
	router http.Handler

	accounts      *memAccounts
	videos        *memVideos
	comments      *memComments
	tweets        *memTweets
	likes         *memLikes
	subscriptions *memSubscriptions
	playlists     *memPlaylists
	history       *memHistory
	stats         *memStats
	media         *memMedia

	tokens *auth.TokenService
	hasher auth.Hasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService("access-secret-0123456789", 24*time.Hour, "refresh-secret-0123456789", 240*time.Hour)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	env := &testEnv{
		accounts: newMemAccounts(),
		videos:   newMemVideos(),
		comments: newMemComments(),
		tweets:   newMemTweets(),
		likes:    newMemLikes(),
		stats:    &memStats{},
		media:    &memMedia{},
		tokens:   tokens,
		hasher:   auth.NewHasherWithCost(bcrypt.MinCost),
	}
	env.subscriptions = newMemSubscriptions(env.accounts)
	env.playlists = newMemPlaylists()
	env.history = newMemHistory(env.videos)

	deps := Dependencies{
		Accounts:      env.accounts,
		Videos:        env.videos,
		Comments:      env.comments,
		Tweets:        env.tweets,
		Likes:         env.likes,
		Subscriptions: env.subscriptions,
		Playlists:     env.playlists,
		History:       env.history,
		Stats:         env.stats,

		Tokens: tokens,
		Hasher: env.hasher,
		Media:  env.media,
		Stager: uploads.Stager{Dir: t.TempDir()},

		AccessTokenMaxAge:  86400,
		RefreshTokenMaxAge: 864000,
	}

	gate := auth.Middleware{Tokens: tokens, Accounts: env.accounts, Reject: Rejecter{}}
	env.router = NewRouter(deps, gate, time.Now())
	return env
}

// addAccount seeds an account directly and returns it with a valid access
// token for authenticated requests.
func (env *testEnv) addAccount(t *testing.T, handle, email, password string) (models.Account, string) {
	t.Helper()

	digest, err := env.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	account := models.Account{
		ID:           models.AccountID("acct-" + handle),
		Handle:       handle,
		Email:        email,
		DisplayName:  handle,
		PasswordHash: digest,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := env.accounts.Create(context.Background(), account); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	token, err := env.tokens.IssueAccessToken(account)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	return account, token
}

func (env *testEnv) addVideo(t *testing.T, owner models.AccountID, title string, published bool) models.Video {
	t.Helper()
	video := models.Video{
		ID:           "vid-" + title,
		OwnerID:      owner,
		Title:        title,
		VideoURL:     "https://cdn.test/videos/" + title,
		VideoID:      "videos/" + title,
		ThumbnailURL: "https://cdn.test/images/" + title,
		ThumbnailID:  "images/" + title,
		Published:    published,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := env.videos.Create(context.Background(), video); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return video
}

func (env *testEnv) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}
