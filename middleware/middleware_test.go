package middleware_test

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/middleware"
	"github.com/nemoserver/authcore/password"
	"github.com/nemoserver/authcore/provision"
	"github.com/nemoserver/authcore/store/memstore"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
)

func newEngine(t *testing.T) *authcore.Engine {
	t.Helper()
	hasher, err := password.New(password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	logger, _ := test.NewNullLogger()
	store := memstore.New()
	if _, err := provision.Seed(context.Background(), store, hasher, provision.Options{Logger: logger}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := authcore.DefaultConfig()
	cfg.Token.Key = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.BcryptCost = bcrypt.MinCost
	e, err := authcore.New().WithConfig(cfg).WithStore(store).WithLogger(logger).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func login(t *testing.T, e *authcore.Engine, username, pw string) string {
	t.Helper()
	tok, err := e.Authenticate(context.Background(), username, pw, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return tok
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusInternalServerError)
		return
	}
	if _, ok := middleware.TokenFromContext(r.Context()); !ok {
		http.Error(w, "no token", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(sess.UserID))
})

func TestRequireSession(t *testing.T) {
	e := newEngine(t)
	tok := login(t, e, "user1", "user1pass")
	h := middleware.RequireSession(e)(okHandler)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: tok})
		}, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }, http.StatusOK},
		{"empty bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") }, http.StatusUnauthorized},
		{"basic auth", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+tok) }, http.StatusUnauthorized},
		{"garbage cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "not-a-token"})
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d (%s)", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRequireSessionRejectsLoggedOutToken(t *testing.T) {
	e := newEngine(t)
	tok := login(t, e, "television", "tvpass123")
	e.Logout(context.Background(), tok)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	middleware.RequireSession(e)(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireSessionNilEngine(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	middleware.RequireSession(nil)(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := newEngine(t)
	h := middleware.RequireRole(e, account.RoleAdmin)(okHandler)

	for _, tt := range []struct {
		username, pw string
		status       int
	}{
		{"admin", "admin123", http.StatusOK},
		{"user1", "user1pass", http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+login(t, e, tt.username, tt.pw))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d, got %d", tt.username, tt.status, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}
}

func TestSessionCookie(t *testing.T) {
	for _, tt := range []struct {
		remember bool
		tls      bool
		maxAge   int
	}{
		{false, false, middleware.SessionMaxAge},
		{true, false, middleware.RememberMeMaxAge},
		{false, true, middleware.SessionMaxAge},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		if tt.tls {
			req.TLS = &tls.ConnectionState{}
		}
		rec := httptest.NewRecorder()
		middleware.SetSessionCookie(rec, req, "tok", tt.remember)

		cookies := rec.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected one cookie, got %d", len(cookies))
		}
		c := cookies[0]
		if c.Name != "ws_session" || c.Value != "tok" || !c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
			t.Fatalf("unexpected cookie %+v", c)
		}
		if c.MaxAge != tt.maxAge || c.Secure != tt.tls {
			t.Fatalf("remember=%v tls=%v: got max-age %d secure %v", tt.remember, tt.tls, c.MaxAge, c.Secure)
		}
	}

	rec := httptest.NewRecorder()
	middleware.ClearSessionCookie(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	c := rec.Result().Cookies()[0]
	if c.MaxAge >= 0 || c.Value != "" {
		t.Fatalf("cookie not cleared: %+v", c)
	}
}

func TestCookieTakesPrecedenceOverHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")
	tok, ok := middleware.TokenFromRequest(req)
	if !ok || tok != "from-cookie" {
		t.Fatalf("expected cookie token, got %q", tok)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:53211"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	if got := middleware.ClientIP(req); got != "198.51.100.7" {
		t.Fatalf("unexpected ip %q", got)
	}
	req.RemoteAddr = "pipe"
	if got := middleware.ClientIP(req); got != "pipe" {
		t.Fatalf("unexpected ip %q", got)
	}
}
