package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$" + AlgorithmArgon2id + "$"

// Argon2Config holds Argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return errors.New("argon2 memory must be >= 8192 KiB")
	case c.Time < 1:
		return errors.New("argon2 time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("argon2 parallelism must be >= 1")
	case c.SaltLength < 16:
		return errors.New("argon2 salt length must be >= 16")
	case c.KeyLength < 16:
		return errors.New("argon2 key length must be >= 16")
	}
	return nil
}

// Argon2 produces PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
type Argon2 struct {
	config Argon2Config
}

// NewArgon2 builds an Argon2id hasher. A zero cfg selects DefaultArgon2Config.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if cfg == (Argon2Config{}) {
		cfg = DefaultArgon2Config()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (a *Argon2) Verify(password, encoded string) bool {
	p, ok := decodePHC(encoded)
	if !ok {
		return false
	}
	key := argon2.IDKey([]byte(password), p.salt, p.cfg.Time, p.cfg.Memory, p.cfg.Parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1
}

func (a *Argon2) NeedsUpgrade(encoded string) bool {
	p, ok := decodePHC(encoded)
	if !ok {
		return false
	}
	return p.cfg.Memory < a.config.Memory ||
		p.cfg.Time < a.config.Time ||
		p.cfg.Parallelism < a.config.Parallelism ||
		uint32(len(p.key)) != a.config.KeyLength
}

type phc struct {
	cfg  Argon2Config
	salt []byte
	key  []byte
}

func isArgon2(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

// decodePHC accepts both padded and unpadded base64 segments.
func decodePHC(encoded string) (phc, bool) {
	var out phc
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return out, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return out, false
	}
	var parallelism uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &out.cfg.Memory, &out.cfg.Time, &parallelism); err != nil {
		return out, false
	}
	if out.cfg.Memory == 0 || out.cfg.Time == 0 || parallelism == 0 || parallelism > 255 {
		return out, false
	}
	out.cfg.Parallelism = uint8(parallelism)

	var err error
	if out.salt, err = decodeSegment(parts[4]); err != nil || len(out.salt) < 8 {
		return out, false
	}
	if out.key, err = decodeSegment(parts[5]); err != nil || len(out.key) == 0 {
		return out, false
	}
	return out, true
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
