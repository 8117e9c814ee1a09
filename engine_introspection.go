package authcore

import (
	"context"
	"time"

	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/session"
)

// SessionInfo is the safe introspection view of a session. It never carries
// the token itself.
type SessionInfo struct {
	TokenID     string       `json:"token_id"`
	UserID      string       `json:"user_id"`
	Role        account.Role `json:"role"`
	SpeakerID   *string      `json:"speaker_id"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	LastRefresh time.Time    `json:"last_refresh"`
	Cached      bool         `json:"cached"`
}

// HealthStatus is an on-demand backend health result. Redis fields stay
// zero when no Redis client is configured.
type HealthStatus struct {
	StoreAvailable bool          `json:"store_available"`
	StoreLatency   time.Duration `json:"store_latency"`
	RedisEnabled   bool          `json:"redis_enabled"`
	RedisAvailable bool          `json:"redis_available"`
	RedisLatency   time.Duration `json:"redis_latency"`
}

// pinger is implemented by stores that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// InspectSession decodes tok and reports its contents without touching the
// cache or the revocation list. Expired tokens are still described.
func (e *Engine) InspectSession(tok string) (*SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	_, cached := e.cache.Get(tok)
	data, err := e.decode(tok)
	if err != nil {
		return nil, err
	}
	return toSessionInfo(tok, data, cached), nil
}

// EvictCached drops tok from the session cache without revoking it, so the
// next ValidateSession decrypts it again.
func (e *Engine) EvictCached(tok string) bool {
	if !e.ready() {
		return false
	}
	return e.cache.Remove(tok)
}

// ActiveSessionEstimate is the number of cached sessions. Sessions that were
// issued by another process or evicted are not counted.
func (e *Engine) ActiveSessionEstimate() int {
	return e.CacheLen()
}

// Health probes the user store and, when configured, Redis.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}
	var hs HealthStatus

	start := time.Now()
	var err error
	if p, ok := e.store.(pinger); ok {
		err = p.Ping(ctx)
	} else {
		_, err = e.store.ListUsers(ctx)
	}
	hs.StoreAvailable = err == nil
	hs.StoreLatency = time.Since(start)

	if e.redis != nil {
		hs.RedisEnabled = true
		start = time.Now()
		hs.RedisAvailable = e.redis.Ping(ctx).Err() == nil
		hs.RedisLatency = time.Since(start)
	}
	return hs
}

// GetLoginAttempts returns the failed logins counted for username in the
// current window. Without Redis throttling it is always 0.
func (e *Engine) GetLoginAttempts(ctx context.Context, username string) (int, error) {
	if e == nil || e.rateLimiter == nil || username == "" {
		return 0, nil
	}
	st, err := e.rateLimiter.Status(ctx, account.NormalizeUsername(username))
	if err != nil {
		return 0, err
	}
	return st.Used, nil
}

func toSessionInfo(tok string, d *session.Data, cached bool) *SessionInfo {
	return &SessionInfo{
		TokenID:     session.TokenID(tok),
		UserID:      d.UserID,
		Role:        d.Role,
		SpeakerID:   d.SpeakerID,
		CreatedAt:   d.CreatedAt,
		ExpiresAt:   d.ExpiresAt,
		LastRefresh: d.LastRefresh,
		Cached:      cached,
	}
}
