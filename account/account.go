package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Store lookups when no record matches.
	ErrNotFound = errors.New("account not found")
	// ErrUnknownRole is returned by ParseRole for any value outside the closed role set.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUsernameTaken is returned by SaveUser when another UserID already owns the username.
	ErrUsernameTaken = errors.New("username already taken")
)

// Role is the closed set of privilege levels. The zero value is not a valid role.
type Role uint8

const (
	// RoleUser is a regular, speaker-restricted identity.
	RoleUser Role = 1
	// RoleAdmin sees every speaker and may manage users.
	RoleAdmin Role = 2
)

// ParseRole converts the persisted role code into a Role. It never defaults.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// String returns the persisted role code, or "" for an invalid role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return ""
	}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Level is the privilege ordinal used by permission checks. Invalid roles map to 0.
func (r Role) Level() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	default:
		return 0
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Record is a stored user account.
type Record struct {
	UserID       string
	Username     string
	PasswordHash string
	Role         Role
	// SpeakerID is nil for identities that are not speaker-restricted (administrators).
	SpeakerID  *string
	Email      *string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Summary is a Record without credential material.
type Summary struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	SpeakerID  *string   `json:"speaker_id"`
	Email      *string   `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Summary strips the password hash.
func (r *Record) Summary() Summary {
	return Summary{
		UserID:     r.UserID,
		Username:   r.Username,
		Role:       r.Role,
		SpeakerID:  cloneString(r.SpeakerID),
		Email:      cloneString(r.Email),
		CreatedAt:  r.CreatedAt,
		ModifiedAt: r.ModifiedAt,
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.SpeakerID = cloneString(r.SpeakerID)
	out.Email = cloneString(r.Email)
	return &out
}

// Store persists user records. Implementations must not cache records in memory
// between calls; every lookup reflects the durable state.
type Store interface {
	GetUserByUsername(ctx context.Context, username string) (*Record, error)
	GetUserByID(ctx context.Context, userID string) (*Record, error)
	// SaveUser inserts or replaces the record keyed by UserID.
	SaveUser(ctx context.Context, rec *Record) error
	ListUsers(ctx context.Context) ([]Summary, error)
}

// NormalizeUsername trims surrounding whitespace. Usernames are case-sensitive.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

// StringPtr returns nil for "" and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
