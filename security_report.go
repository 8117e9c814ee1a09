package authcore

import (
	"strings"
	"time"
)

// SecurityReport summarizes the security-relevant settings an Engine runs with.
type SecurityReport struct {
	TokenCipher          string
	TokenIntegrity       bool
	EphemeralKey         bool
	SessionDuration      time.Duration
	RefreshInterval      time.Duration
	PasswordAlgorithm    string
	BcryptCost           int
	Argon2               PasswordConfigReport
	RevocationEnabled    bool
	RevocationShared     bool
	RateLimitingActive   bool
	LoginMaxAttempts     int
	LoginWindow          time.Duration
	AuditEnabled         bool
	JanitorEnabled       bool
	JanitorSchedule      string
	MinPasswordLength    int
	UpgradeHashesOnLogin bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	algo := strings.ToLower(e.config.Password.Algorithm)
	if algo == "" {
		algo = "bcrypt"
	}

	return SecurityReport{
		TokenCipher:       "aes-256-cbc",
		TokenIntegrity:    false,
		EphemeralKey:      len(e.config.Token.Key) == 0,
		SessionDuration:   e.config.Session.Duration,
		RefreshInterval:   e.config.Session.RefreshInterval,
		PasswordAlgorithm: algo,
		BcryptCost:        e.config.Password.BcryptCost,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Argon2.Memory,
			Time:        e.config.Password.Argon2.Time,
			Parallelism: e.config.Password.Argon2.Parallelism,
			SaltLength:  e.config.Password.Argon2.SaltLength,
			KeyLength:   e.config.Password.Argon2.KeyLength,
		},
		RevocationEnabled:    e.revocations != nil,
		RevocationShared:     e.revocations != nil && e.redis != nil,
		RateLimitingActive:   e.rateLimiter != nil,
		LoginMaxAttempts:     e.config.RateLimit.MaxAttempts,
		LoginWindow:          e.config.RateLimit.Window,
		AuditEnabled:         e.audit != nil,
		JanitorEnabled:       e.janitor != nil,
		JanitorSchedule:      e.config.Janitor.Schedule,
		MinPasswordLength:    e.config.Password.MinLength,
		UpgradeHashesOnLogin: e.config.Password.UpgradeOnLogin,
	}
}
