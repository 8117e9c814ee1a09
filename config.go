package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nemoserver/authcore/password"
	"github.com/nemoserver/authcore/token"
	"github.com/robfig/cron/v3"
)

// Config is the full Engine configuration. Start from DefaultConfig and
// override fields; Build validates the result.
type Config struct {
	Token      TokenConfig
	Session    SessionConfig
	Password   PasswordConfig
	Revocation RevocationConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Janitor    JanitorConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds the AES-256 key used to seal session tokens.
// An empty key makes Build generate an ephemeral one: every token issued
// before a restart becomes invalid.
type TokenConfig struct {
	Key []byte
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	// Duration is the lifetime of a freshly issued token.
	Duration time.Duration
	// RefreshInterval is the minimum age before RefreshToken rotates.
	RefreshInterval time.Duration
	// CacheSize bounds the in-process token cache. Evicted tokens still
	// validate through decryption.
	CacheSize int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Algorithm  string // "bcrypt" (default) or "argon2id"
	BcryptCost int
	Argon2     password.Argon2Config
	// MinLength applies to Register and ChangePassword. 0 disables the check.
	MinLength int
	// UpgradeOnLogin rehashes stored hashes from a weaker or foreign algorithm
	// after a successful login.
	UpgradeOnLogin bool
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls the denylist consulted on cache misses. With
// Enabled=false a logged-out token that is still unexpired validates again
// once it is decrypted.
type RevocationConfig struct {
	Enabled     bool
	RedisPrefix string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig throttles failed logins. It only takes effect when the
// builder has a Redis client.
type RateLimitConfig struct {
	Enabled          bool
	MaxAttempts      int
	Window           time.Duration
	EnableIPThrottle bool
	RedisPrefix      string
}

/*
====================================
AUDIT / METRICS / JANITOR
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// JanitorConfig schedules CleanupExpiredSessions with a cron spec
// ("@every 10m", "*/5 * * * *").
type JanitorConfig struct {
	Enabled  bool
	Schedule string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns 24h sessions, 1h refresh interval, bcrypt cost 12,
// revocation on, and 5 failed logins per 5 minutes.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Duration:        24 * time.Hour,
			RefreshInterval: time.Hour,
			CacheSize:       100_000,
		},
		Password: PasswordConfig{
			Algorithm:      password.AlgorithmBcrypt,
			BcryptCost:     password.DefaultBcryptCost,
			Argon2:         password.DefaultArgon2Config(),
			UpgradeOnLogin: true,
		},
		Revocation: RevocationConfig{
			Enabled:     true,
			RedisPrefix: "authcore",
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			MaxAttempts:      5,
			Window:           5 * time.Minute,
			EnableIPThrottle: true,
			RedisPrefix:      "authcore",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Janitor: JanitorConfig{
			Enabled:  false,
			Schedule: "@every 10m",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Key = cloneBytes(cfg.Token.Key)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Algorithm:  c.Algorithm,
		BcryptCost: c.BcryptCost,
		Argon2:     c.Argon2,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first unusable setting. Every error wraps ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Token
	if len(c.Token.Key) != 0 && len(c.Token.Key) != token.KeySize {
		return fmt.Errorf("Token Key must be %d bytes, got %d", token.KeySize, len(c.Token.Key))
	}

	// Session
	if c.Session.Duration <= 0 {
		return errors.New("Session Duration must be > 0")
	}
	if c.Session.RefreshInterval < 0 {
		return errors.New("Session RefreshInterval must be >= 0")
	}
	if c.Session.CacheSize <= 0 {
		return errors.New("Session CacheSize must be > 0")
	}

	// Password
	switch strings.ToLower(c.Password.Algorithm) {
	case "", password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return fmt.Errorf("Password Algorithm %q is not supported", c.Password.Algorithm)
	}
	if c.Password.MinLength < 0 {
		return errors.New("Password MinLength must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	// Janitor
	if c.Janitor.Enabled {
		if _, err := cron.ParseStandard(c.Janitor.Schedule); err != nil {
			return fmt.Errorf("Janitor Schedule: %v", err)
		}
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a setting that is valid but probably not what production wants.
type LintWarning struct {
	Code    string
	Message string
}

type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// Lint returns advisory warnings. It never fails; run Validate for hard errors.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if len(c.Token.Key) == 0 {
		add("ephemeral_key", "no token key configured; sessions will not survive a restart")
	}
	if !c.Revocation.Enabled {
		add("revocation_disabled", "logged-out tokens validate again after a cache miss until they expire")
	}
	if !c.RateLimit.Enabled {
		add("rate_limits_disabled", "failed logins are not throttled")
	}
	if c.Session.Duration > 7*24*time.Hour {
		add("session_duration_long", "session duration exceeds 7 days")
	}
	if c.Session.RefreshInterval >= c.Session.Duration {
		add("refresh_never_rotates", "refresh interval is not shorter than the session duration")
	}
	if strings.EqualFold(c.Password.Algorithm, password.AlgorithmBcrypt) || c.Password.Algorithm == "" {
		if c.Password.BcryptCost != 0 && c.Password.BcryptCost < password.DefaultBcryptCost {
			add("bcrypt_cost_low", fmt.Sprintf("bcrypt cost %d is below %d", c.Password.BcryptCost, password.DefaultBcryptCost))
		}
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		add("audit_blocking", "audit emits block callers when the buffer is full")
	}
	return ws
}
