package authcore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is the parent of every "no valid session" outcome.
	// Handlers that only care about 401 vs 200 can test for it alone.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenInvalid covers undecodable, tampered, malformed and
	// wrong-key tokens. The underlying cause is never exposed.
	ErrTokenInvalid = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	// ErrSessionExpired is returned once expires_at has passed.
	ErrSessionExpired = fmt.Errorf("%w: session expired", ErrUnauthorized)
	// ErrSessionRevoked is returned for tokens that were logged out or rotated away.
	ErrSessionRevoked = fmt.Errorf("%w: session revoked", ErrUnauthorized)

	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrLoginRateLimited    = errors.New("login rate limited")
	ErrAccountExists       = errors.New("account already exists")
	ErrInvalidRole         = errors.New("invalid account role")
	ErrPasswordPolicy      = errors.New("password policy violation")
	ErrInvalidUsername     = errors.New("invalid username")
	ErrUserNotFound        = errors.New("user not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrSpeakerAccessDenied = errors.New("speaker access denied")

	// ErrStoreUnavailable wraps failures of the user store or Redis.
	ErrStoreUnavailable = errors.New("backend unavailable")
	// ErrConfiguration is returned by Build for an unusable Config.
	ErrConfiguration = errors.New("invalid configuration")
	ErrEngineNotReady = errors.New("engine not initialized")
)
