package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

type staticResolver struct {
	accounts map[models.AccountID]models.Account
}

func (r staticResolver) FindByID(_ context.Context, id models.AccountID) (models.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	return account, nil
}

type plainRejecter struct{}

func (plainRejecter) Reject(w http.ResponseWriter, _ *http.Request, status int, message string) {
	http.Error(w, message, status)
}

func newTestMiddleware(t *testing.T) (Middleware, string) {
	t.Helper()
	svc := newTestTokenService(t)

	account := models.Account{ID: "acct-1", Handle: "creator", Email: "creator@example.com"}
	token, err := svc.IssueAccessToken(account)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}

	mw := Middleware{
		Tokens:   svc,
		Accounts: staticResolver{accounts: map[models.AccountID]models.Account{"acct-1": account}},
		Reject:   plainRejecter{},
	}
	return mw, token
}

func accountEcho(t *testing.T, want bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := AccountFromContext(r.Context())
		if ok != want {
			t.Fatalf("account in context = %v, want %v", ok, want)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireWithoutToken(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()

	mw.Require(accountEcho(t, true)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireWithCookie(t *testing.T) {
	mw, token := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()

	mw.Require(accountEcho(t, true)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestRequireWithBearerHeader(t *testing.T) {
	mw, token := newTestMiddleware(t)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw.Require(accountEcho(t, true)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestRequireWithUnknownAccount(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	token, err := mw.Tokens.IssueAccessToken(models.Account{ID: "ghost"})
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()

	mw.Require(accountEcho(t, true)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deleted account, got %d", rec.Code)
	}
}

func TestOptionalNeverRejects(t *testing.T) {
	mw, token := newTestMiddleware(t)

	anon := httptest.NewRequest(http.MethodGet, "/open", nil)
	rec := httptest.NewRecorder()
	mw.Optional(accountEcho(t, false)).ServeHTTP(rec, anon)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("anonymous request: expected 204, got %d", rec.Code)
	}

	authed := httptest.NewRequest(http.MethodGet, "/open", nil)
	authed.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec = httptest.NewRecorder()
	mw.Optional(accountEcho(t, true)).ServeHTTP(rec, authed)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("authenticated request: expected 204, got %d", rec.Code)
	}

	garbled := httptest.NewRequest(http.MethodGet, "/open", nil)
	garbled.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "broken"})
	rec = httptest.NewRecorder()
	mw.Optional(accountEcho(t, false)).ServeHTTP(rec, garbled)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("garbled token: expected 204, got %d", rec.Code)
	}
}

func TestGuestOnly(t *testing.T) {
	mw, token := newTestMiddleware(t)

	anon := httptest.NewRequest(http.MethodPost, "/login", nil)
	rec := httptest.NewRecorder()
	mw.GuestOnly(accountEcho(t, false)).ServeHTTP(rec, anon)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("guest request: expected 204, got %d", rec.Code)
	}

	authed := httptest.NewRequest(http.MethodPost, "/login", nil)
	authed.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec = httptest.NewRecorder()
	mw.GuestOnly(accountEcho(t, false)).ServeHTTP(rec, authed)
	if rec.Code != http.StatusConflict {
		t.Fatalf("authenticated request: expected 409, got %d", rec.Code)
	}
}
