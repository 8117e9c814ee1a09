package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/password"
	"github.com/nemoserver/authcore/provision"
	"github.com/nemoserver/authcore/store/memstore"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fastArgon2() password.Argon2Config {
	cfg := password.DefaultArgon2Config()
	cfg.Memory = 8 * 1024
	cfg.Time = 1
	cfg.Parallelism = 1
	return cfg
}

// testConfig is DefaultConfig with cheap hashing and a fixed key.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Key = testKey
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Password.Argon2 = fastArgon2()
	return cfg
}

func fastHasher(t testing.TB) *password.Multi {
	t.Helper()
	h, err := password.New(password.Config{
		Algorithm:  password.AlgorithmBcrypt,
		BcryptCost: bcrypt.MinCost,
		Argon2:     fastArgon2(),
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	return h
}

// seededStore holds the default accounts.
func seededStore(t testing.TB) *memstore.Store {
	t.Helper()
	store := memstore.New()
	logger, _ := test.NewNullLogger()
	if _, err := provision.Seed(context.Background(), store, fastHasher(t), provision.Options{Logger: logger}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

type testEngine struct {
	*Engine
	store *memstore.Store
	clock *fakeClock
	hook  *test.Hook
}

type engineOption func(*Builder)

func newTestEngine(t testing.TB, cfg Config, opts ...engineOption) *testEngine {
	t.Helper()
	store := seededStore(t)
	return newTestEngineWithStore(t, cfg, store, opts...)
}

func newTestEngineWithStore(t testing.TB, cfg Config, store *memstore.Store, opts ...engineOption) *testEngine {
	t.Helper()
	clock := newFakeClock()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	b := New().
		WithConfig(cfg).
		WithStore(store).
		WithLogger(logger).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	e, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(e.Close)

	return &testEngine{Engine: e, store: store, clock: clock, hook: hook}
}

func mustLogin(t testing.TB, e *Engine, username, pw string) string {
	t.Helper()
	tok, err := e.Authenticate(context.Background(), username, pw, "")
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return tok
}

// brokenStore fails every call, as a database that went away would.
type brokenStore struct{}

var errStoreDown = errors.New("database is locked")

func (brokenStore) GetUserByUsername(context.Context, string) (*account.Record, error) {
	return nil, errStoreDown
}

func (brokenStore) GetUserByID(context.Context, string) (*account.Record, error) {
	return nil, errStoreDown
}

func (brokenStore) SaveUser(context.Context, *account.Record) error {
	return errStoreDown
}

func (brokenStore) ListUsers(context.Context) ([]account.Summary, error) {
	return nil, errStoreDown
}
