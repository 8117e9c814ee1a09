package password

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedAlgorithm is returned by New for an unknown algorithm name.
var ErrUnsupportedAlgorithm = errors.New("unsupported password algorithm")

// Hasher hashes and verifies passwords.
//
// Verify must return false for malformed or foreign hashes instead of failing.
// Hash output is salted, so two calls with the same input never match byte for byte.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
	// NeedsUpgrade reports whether encoded was produced with weaker or different
	// parameters than the hasher would use today.
	NeedsUpgrade(encoded string) bool
}

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Config selects and tunes the primary algorithm.
type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Config
}

// DefaultConfig hashes with bcrypt at cost 12.
func DefaultConfig() Config {
	return Config{
		Algorithm:  AlgorithmBcrypt,
		BcryptCost: DefaultBcryptCost,
		Argon2:     DefaultArgon2Config(),
	}
}

// New builds a Multi hasher whose primary algorithm follows cfg. Hashes from the
// other supported algorithm still verify and report NeedsUpgrade.
func New(cfg Config) (*Multi, error) {
	bc, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a2, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Algorithm) {
	case "", AlgorithmBcrypt:
		return &Multi{primary: bc, bcrypt: bc, argon2: a2}, nil
	case AlgorithmArgon2id:
		return &Multi{primary: a2, bcrypt: bc, argon2: a2}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}
}

// Multi dispatches verification on the stored hash's prefix.
type Multi struct {
	primary Hasher
	bcrypt  *Bcrypt
	argon2  *Argon2
}

func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *Multi) Verify(password, encoded string) bool {
	h := m.owner(encoded)
	if h == nil {
		return false
	}
	return h.Verify(password, encoded)
}

func (m *Multi) NeedsUpgrade(encoded string) bool {
	h := m.owner(encoded)
	if h == nil {
		return false
	}
	if h != m.primary {
		return true
	}
	return h.NeedsUpgrade(encoded)
}

func (m *Multi) owner(encoded string) Hasher {
	switch {
	case isArgon2(encoded):
		return m.argon2
	case isBcrypt(encoded):
		return m.bcrypt
	default:
		return nil
	}
}
