package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/internal/audit"
	"github.com/nemoserver/authcore/internal/rate"
	"github.com/nemoserver/authcore/password"
	"github.com/nemoserver/authcore/session"
	"github.com/nemoserver/authcore/token"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Engine owns the session lifecycle: login, validation, rotation, logout
// and role checks. All methods are safe for concurrent use.
type Engine struct {
	config      Config
	codec       *token.Codec
	cache       session.Cache
	revocations session.RevocationList
	store       account.Store
	hasher      *password.Multi
	dummyHash   string
	rateLimiter *rate.Limiter
	redis       redis.UniversalClient
	audit       *audit.Dispatcher
	metrics     *Metrics
	janitor     *Janitor
	log         logrus.FieldLogger
	clock       func() time.Time
}

// Close stops the janitor and flushes the audit buffer. It is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.janitor.Stop()
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// CacheLen reports how many sessions are currently cached.
func (e *Engine) CacheLen() int {
	if e == nil || e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	return session.Normalize(e.clock())
}

func (e *Engine) ready() bool {
	return e != nil && e.codec != nil && e.store != nil && e.hasher != nil
}

/*
====================================
AUTHENTICATE
====================================
*/

// Authenticate verifies username and password and returns a new session
// token. Unknown users and wrong passwords both yield ErrInvalidCredentials
// and take the same time. An empty ip falls back to WithClientIP.
func (e *Engine) Authenticate(ctx context.Context, username, pw, ip string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	username = account.NormalizeUsername(username)
	ip = resolveIP(ctx, ip)

	if err := e.checkLoginThrottle(ctx, username, ip); err != nil {
		return "", err
	}

	rec, err := e.store.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricStoreError)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", username, "", ErrStoreUnavailable, nil)
			return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		// equalize timing with the wrong-password path
		e.hasher.Verify(pw, e.dummyHash)
		return "", e.loginFailed(ctx, username, ip, "", "unknown_user")
	}

	if !e.hasher.Verify(pw, rec.PasswordHash) {
		return "", e.loginFailed(ctx, username, ip, rec.UserID, "bad_password")
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, username); err != nil {
			e.log.WithError(err).Warn("reset login throttle")
		}
	}

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsUpgrade(rec.PasswordHash) {
		e.upgradeHash(ctx, rec, pw)
	}

	tok, data, err := e.issueSession(rec, ip)
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, rec.UserID, username, "", err, nil)
		return "", err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, rec.UserID, username, session.TokenID(tok), nil, func() map[string]string {
		return map[string]string{
			"role":       data.Role.String(),
			"expires_at": data.ExpiresAt.Format(time.RFC3339),
		}
	})
	e.log.WithFields(logrus.Fields{"user_id": rec.UserID, "role": rec.Role.String()}).Debug("login succeeded")

	return tok, nil
}

func (e *Engine) checkLoginThrottle(ctx context.Context, username, ip string) error {
	if e.rateLimiter == nil {
		return nil
	}
	err := e.rateLimiter.CheckLogin(ctx, username, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", username, "", ErrLoginRateLimited, nil)
		return ErrLoginRateLimited
	default:
		e.metricInc(MetricStoreError)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func (e *Engine) loginFailed(ctx context.Context, username, ip, userID, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, username, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"reason": reason}
	})

	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.log.WithError(err).Warn("record failed login")
		}
	}
	return ErrInvalidCredentials
}

// upgradeHash is best effort; the login succeeds either way.
func (e *Engine) upgradeHash(ctx context.Context, rec *account.Record, pw string) {
	newHash, err := e.hasher.Hash(pw)
	if err != nil {
		e.log.WithError(err).WithField("user_id", rec.UserID).Warn("password rehash failed")
		return
	}
	updated := rec.Clone()
	updated.PasswordHash = newHash
	updated.ModifiedAt = e.now()
	if err := e.store.SaveUser(ctx, updated); err != nil {
		e.log.WithError(err).WithField("user_id", rec.UserID).Warn("password rehash not saved")
		return
	}
	e.metricInc(MetricPasswordRehash)
}

// issueSession builds, seals and caches a fresh session for rec.
func (e *Engine) issueSession(rec *account.Record, ip string) (string, *session.Data, error) {
	now := e.now()
	data := session.Data{
		UserID:      rec.UserID,
		Role:        rec.Role,
		SpeakerID:   rec.SpeakerID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.config.Session.Duration),
		IP:          account.StringPtr(ip),
		LastRefresh: now,
	}
	data = data.Clone()

	tok, err := e.codec.Encrypt(data)
	if err != nil {
		return "", nil, fmt.Errorf("seal session: %w", err)
	}
	e.cache.Put(tok, data)
	e.metricInc(MetricSessionCreated)

	return tok, &data, nil
}

/*
====================================
VALIDATE
====================================
*/

// ValidateSession returns the session carried by tok. Every rejection wraps
// ErrUnauthorized: ErrTokenInvalid, ErrSessionExpired or ErrSessionRevoked.
// ErrStoreUnavailable is returned when the revocation list cannot be read.
func (e *Engine) ValidateSession(ctx context.Context, tok string) (*session.Data, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	data, err := e.validate(ctx, tok)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, err
	}
	e.metricInc(MetricValidateSuccess)
	return data, nil
}

func (e *Engine) validate(ctx context.Context, tok string) (*session.Data, error) {
	if tok == "" {
		e.metricInc(MetricTokenInvalid)
		return nil, ErrTokenInvalid
	}
	now := e.now()

	if cached, ok := e.cache.Get(tok); ok {
		e.metricInc(MetricValidateCacheHit)
		if cached.Expired(now) {
			e.cache.Remove(tok)
			e.metricInc(MetricSessionExpired)
			return nil, ErrSessionExpired
		}
		return &cached, nil
	}
	e.metricInc(MetricValidateCacheMiss)

	if e.revocations != nil {
		revoked, err := e.revocations.IsRevoked(ctx, session.TokenID(tok))
		if err != nil {
			e.metricInc(MetricStoreError)
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if revoked {
			e.metricInc(MetricSessionRevoked)
			return nil, ErrSessionRevoked
		}
	}

	data, err := e.decode(tok)
	if err != nil {
		e.metricInc(MetricTokenInvalid)
		return nil, err
	}
	if data.Expired(now) {
		e.metricInc(MetricSessionExpired)
		return nil, ErrSessionExpired
	}

	e.cache.Put(tok, *data)

	// A Logout that ran after the first lookup revokes first and evicts
	// second, so one of the two always sees the other.
	if e.revocations != nil {
		revoked, err := e.revocations.IsRevoked(ctx, session.TokenID(tok))
		if err != nil || revoked {
			e.cache.Remove(tok)
		}
		if err != nil {
			e.metricInc(MetricStoreError)
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if revoked {
			e.metricInc(MetricSessionRevoked)
			return nil, ErrSessionRevoked
		}
	}
	return data, nil
}

// decode opens tok without consulting the cache. Any failure, including a
// payload that decrypts but lacks required fields, is ErrTokenInvalid.
func (e *Engine) decode(tok string) (*session.Data, error) {
	var data session.Data
	if err := e.codec.Decrypt(tok, &data); err != nil {
		return nil, ErrTokenInvalid
	}
	if err := data.Validate(); err != nil {
		return nil, ErrTokenInvalid
	}
	return &data, nil
}

/*
====================================
REFRESH
====================================
*/

// RefreshToken returns tok unchanged while it is younger than the refresh
// interval. Otherwise it revokes tok and issues a new token from the
// current user record, so role and speaker changes take effect. An empty
// ip keeps the old session's address.
func (e *Engine) RefreshToken(ctx context.Context, tok, ip string) (string, error) {
	data, err := e.ValidateSession(ctx, tok)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", session.TokenID(tok), err, nil)
		return "", err
	}

	if e.now().Sub(data.LastRefresh) < e.config.Session.RefreshInterval {
		e.metricInc(MetricRefreshSkipped)
		return tok, nil
	}

	rec, err := e.store.GetUserByID(ctx, data.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, account.ErrNotFound) {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, data.UserID, "", session.TokenID(tok), ErrUserNotFound, nil)
			return "", ErrTokenInvalid
		}
		e.metricInc(MetricStoreError)
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if ip == "" {
		ip = account.Deref(data.IP)
	}

	e.Logout(ctx, tok)

	newTok, _, err := e.issueSession(rec, ip)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return "", err
	}

	e.metricInc(MetricRefreshRotated)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, rec.UserID, rec.Username, session.TokenID(newTok), nil, func() map[string]string {
		return map[string]string{"previous_token_id": session.TokenID(tok)}
	})
	return newTok, nil
}

/*
====================================
LOGOUT
====================================
*/

// Logout drops tok from the cache and reports whether it was cached. With
// revocation enabled an unexpired tok is also denylisted until it expires,
// so it cannot be revived by decryption.
func (e *Engine) Logout(ctx context.Context, tok string) bool {
	if !e.ready() || tok == "" {
		return false
	}

	// revoke before evicting; see the miss path in validate
	var userID string
	if e.revocations != nil {
		if data, err := e.decode(tok); err == nil {
			userID = data.UserID
			if ttl := data.Remaining(e.now()); ttl > 0 {
				if err := e.revocations.Revoke(ctx, session.TokenID(tok), ttl); err != nil {
					e.metricInc(MetricStoreError)
					e.log.WithError(err).Warn("revoke token")
				}
			}
		}
	}
	existed := e.cache.Remove(tok)

	if existed {
		e.metricInc(MetricLogout)
	}
	e.emitAudit(ctx, auditEventLogout, existed, userID, "", session.TokenID(tok), nil, nil)
	return existed
}

/*
====================================
CLEANUP
====================================
*/

// CleanupExpiredSessions removes cached sessions past their expiry and
// returns how many were removed. Tokens that were never cached are not
// tracked and are unaffected.
func (e *Engine) CleanupExpiredSessions(ctx context.Context) int {
	if !e.ready() {
		return 0
	}
	now := e.now()
	removed := e.cache.Sweep(now)
	if e.metrics != nil {
		e.metrics.Add(MetricSessionsSwept, uint64(removed))
	}

	if e.revocations != nil {
		pruned, err := e.revocations.Prune(ctx, now)
		if err != nil {
			e.log.WithError(err).Warn("prune revocation list")
		} else if pruned > 0 {
			e.log.WithField("pruned", pruned).Debug("revocation list pruned")
		}
	}

	if removed > 0 {
		e.log.WithField("removed", removed).Info("expired sessions removed")
	}
	return removed
}

/*
====================================
AUTHORIZATION
====================================
*/

// CheckPermission validates tok and reports whether its role is at least
// required. Invalid sessions and unknown roles are denied.
func (e *Engine) CheckPermission(ctx context.Context, tok string, required account.Role) bool {
	data, err := e.ValidateSession(ctx, tok)
	if err != nil {
		return false
	}
	if !HasRole(data, required) {
		e.metricInc(MetricPermissionDenied)
		return false
	}
	return true
}

// HasRole compares privilege ordinals. An unknown required role can never be
// satisfied and an unknown session role satisfies nothing.
func HasRole(sess *session.Data, required account.Role) bool {
	if sess == nil {
		return false
	}
	need := required.Level()
	if need == 0 {
		need = 999
	}
	return sess.Role.Level() >= need
}
