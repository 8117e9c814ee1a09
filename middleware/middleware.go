package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/session"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "ws_session"

const (
	// SessionMaxAge is the cookie lifetime for a normal login.
	SessionMaxAge = 24 * 60 * 60
	// RememberMeMaxAge is the cookie lifetime when "remember me" is set.
	RememberMeMaxAge = 30 * 24 * 60 * 60
)

type sessionContextKey struct{}
type tokenContextKey struct{}

// SessionFromContext returns the session injected by RequireSession.
func SessionFromContext(ctx context.Context) (*session.Data, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Data)
	return sess, ok && sess != nil
}

// TokenFromContext returns the raw token the request authenticated with.
func TokenFromContext(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenContextKey{}).(string)
	return tok, ok && tok != ""
}

// TokenFromRequest reads the session token from the ws_session cookie,
// falling back to an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) (string, bool) {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// RequestContext attaches the client IP and User-Agent of r to its context
// so that Engine calls can throttle and audit by them.
func RequestContext(r *http.Request) context.Context {
	ctx := authcore.WithClientIP(r.Context(), ClientIP(r))
	return authcore.WithUserAgent(ctx, r.UserAgent())
}

// ClientIP returns the host part of r.RemoteAddr. Proxy headers are not
// trusted.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequireSession rejects requests without a valid session with 401, or 503
// when the session backend is unreachable.
func RequireSession(engine *authcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, tok, ok := authenticate(engine, w, r)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r, sess, tok)))
		})
	}
}

// RequireRole is RequireSession plus a minimum role check. Insufficient
// roles get 403.
func RequireRole(engine *authcore.Engine, role account.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, tok, ok := authenticate(engine, w, r)
			if !ok {
				return
			}
			if !authcore.HasRole(sess, role) {
				WriteError(w, http.StatusForbidden, "Insufficient permissions. Required: "+role.String()+", Your role: "+sess.Role.String())
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r, sess, tok)))
		})
	}
}

func authenticate(engine *authcore.Engine, w http.ResponseWriter, r *http.Request) (*session.Data, string, bool) {
	if engine == nil {
		WriteError(w, http.StatusServiceUnavailable, "authentication unavailable")
		return nil, "", false
	}

	tok, ok := TokenFromRequest(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Not authenticated. Please log in.")
		return nil, "", false
	}

	sess, err := engine.ValidateSession(RequestContext(r), tok)
	if err != nil {
		if errors.Is(err, authcore.ErrStoreUnavailable) {
			WriteError(w, http.StatusServiceUnavailable, "authentication backend unavailable")
			return nil, "", false
		}
		WriteError(w, http.StatusUnauthorized, "Invalid or expired session. Please log in again.")
		return nil, "", false
	}
	return sess, tok, true
}

func withSession(r *http.Request, sess *session.Data, tok string) context.Context {
	ctx := RequestContext(r)
	ctx = context.WithValue(ctx, sessionContextKey{}, sess)
	return context.WithValue(ctx, tokenContextKey{}, tok)
}

// SetSessionCookie writes the ws_session cookie for tok.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, tok string, rememberMe bool) {
	maxAge := SessionMaxAge
	if rememberMe {
		maxAge = RememberMeMaxAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the ws_session cookie.
func ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"detail": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"detail": msg})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
