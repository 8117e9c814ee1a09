package password

import (
	"strings"
	"testing"
)

func fastArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestArgon2HashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(fastArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("tvpass123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if !hasher.Verify("tvpass123", hash) {
		t.Fatal("expected password verification to succeed")
	}
	if hasher.Verify("tvpass124", hash) {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestArgon2HashIsSalted(t *testing.T) {
	hasher, err := NewArgon2(fastArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	a, _ := hasher.Hash("same")
	b, _ := hasher.Hash("same")
	if a == b {
		t.Fatal("expected distinct hashes for identical input")
	}
}

func TestArgon2NeedsUpgrade(t *testing.T) {
	oldHasher, err := NewArgon2(fastArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2(old) error: %v", err)
	}
	hash, err := oldHasher.Hash("test-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := fastArgon2Config()
	stronger.Time = 2
	newHasher, err := NewArgon2(stronger)
	if err != nil {
		t.Fatalf("NewArgon2(new) error: %v", err)
	}
	if !newHasher.NeedsUpgrade(hash) {
		t.Fatal("expected upgrade for weaker time cost")
	}
	if oldHasher.NeedsUpgrade(hash) {
		t.Fatal("hash with current params should not need upgrade")
	}
}

func TestArgon2MalformedHashes(t *testing.T) {
	hasher, err := NewArgon2(fastArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	bad := []string{
		"",
		"plain",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=999$c2FsdHNhbHRzYWx0$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	}
	for _, h := range bad {
		if hasher.Verify("x", h) {
			t.Fatalf("Verify accepted malformed hash %q", h)
		}
		if hasher.NeedsUpgrade(h) {
			t.Fatalf("NeedsUpgrade true for malformed hash %q", h)
		}
	}
}

func TestArgon2ConfigValidation(t *testing.T) {
	cfg := fastArgon2Config()
	cfg.Memory = 1024
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected low memory to be rejected")
	}
	cfg = fastArgon2Config()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected short salt to be rejected")
	}
}

func TestArgon2ZeroConfigUsesDefaults(t *testing.T) {
	hasher, err := NewArgon2(Argon2Config{})
	if err != nil {
		t.Fatalf("NewArgon2(zero) error: %v", err)
	}
	if hasher.config != DefaultArgon2Config() {
		t.Fatalf("config=%+v want defaults", hasher.config)
	}
}
