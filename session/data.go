package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/nemoserver/authcore/account"
)

// ErrMalformed is returned when a decoded payload lacks required fields.
var ErrMalformed = errors.New("session payload malformed")

// Data is the plaintext carried inside a session token. It is the single source of
// truth for a session's identity and validity window.
type Data struct {
	UserID string
	Role   account.Role
	// SpeakerID is nil for unrestricted (administrator) sessions.
	SpeakerID   *string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	IP          *string
	LastRefresh time.Time
}

// wireData is the JSON layout shared with tokens minted by earlier deployments:
// timestamps are float unix seconds and optional strings are null.
type wireData struct {
	UserID      string       `json:"user_id"`
	Role        account.Role `json:"role"`
	SpeakerID   *string      `json:"speaker_id"`
	CreatedAt   float64      `json:"created_at"`
	ExpiresAt   float64      `json:"expires_at"`
	IP          *string      `json:"ip"`
	LastRefresh float64      `json:"last_refresh"`
}

func (d Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireData{
		UserID:      d.UserID,
		Role:        d.Role,
		SpeakerID:   d.SpeakerID,
		CreatedAt:   toUnixSeconds(d.CreatedAt),
		ExpiresAt:   toUnixSeconds(d.ExpiresAt),
		IP:          d.IP,
		LastRefresh: toUnixSeconds(d.LastRefresh),
	})
}

func (d *Data) UnmarshalJSON(b []byte) error {
	var w wireData
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = Data{
		UserID:      w.UserID,
		Role:        w.Role,
		SpeakerID:   w.SpeakerID,
		CreatedAt:   fromUnixSeconds(w.CreatedAt),
		ExpiresAt:   fromUnixSeconds(w.ExpiresAt),
		IP:          w.IP,
		LastRefresh: fromUnixSeconds(w.LastRefresh),
	}
	return nil
}

// Validate checks the structural minimum of a decoded payload.
func (d *Data) Validate() error {
	if d.UserID == "" || !d.Role.Valid() || d.ExpiresAt.IsZero() || d.CreatedAt.IsZero() {
		return ErrMalformed
	}
	return nil
}

// Expired reports whether now is past ExpiresAt. The boundary instant is still valid.
func (d *Data) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// Remaining is the time left until expiry, never negative.
func (d *Data) Remaining(now time.Time) time.Duration {
	if left := d.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	d.SpeakerID = cloneString(d.SpeakerID)
	d.IP = cloneString(d.IP)
	return d
}

// Now returns the current time at the precision that survives the wire format.
func Now() time.Time {
	return Normalize(time.Now())
}

// Normalize truncates t to microseconds in UTC so that encode/decode is lossless.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// TokenID is the identifier under which a token is tracked in revocation lists.
// It never reveals the token itself.
func TokenID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func toUnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

func fromUnixSeconds(f float64) time.Time {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}
	}
	return time.UnixMicro(int64(math.Round(f * 1e6))).UTC()
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
