package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/internal/audit"
	"github.com/nemoserver/authcore/internal/rate"
	"github.com/nemoserver/authcore/password"
	"github.com/nemoserver/authcore/session"
	"github.com/nemoserver/authcore/token"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// dummyPassword is hashed once per Engine so that unknown usernames cost
// the same as a wrong password.
const dummyPassword = "authcore-timing-equalizer"

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store       account.Store
	cache       session.Cache
	revocations session.RevocationList
	auditSink   AuditSink
	logger      logrus.FieldLogger
	clock       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the durable user store. Required.
func (b *Builder) WithStore(store account.Store) *Builder {
	b.store = store
	return b
}

// WithRedis enables login throttling and moves the revocation list into Redis
// so that it is shared between processes.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache replaces the default in-process LRU session cache.
func (b *Builder) WithCache(cache session.Cache) *Builder {
	b.cache = cache
	return b
}

// WithRevocationList overrides the revocation backend chosen from the config.
func (b *Builder) WithRevocationList(list session.RevocationList) *Builder {
	b.revocations = list
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. Configuration
// problems wrap ErrConfiguration.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, fmt.Errorf("%w: user store required", ErrConfiguration)
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "authcore")

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- TOKEN CODEC --------
	key := cfg.Token.Key
	if len(key) == 0 {
		generated, err := token.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate token key: %w", err)
		}
		key = generated
		logger.Warn("no token key configured; generated an ephemeral key, sessions will not survive a restart")
	}
	codec, err := token.NewCodec(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.New(cfg.Password.hasherConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	// -------- SESSION CACHE --------
	cache := b.cache
	if cache == nil {
		mc, err := session.NewMemoryCache(cfg.Session.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		cache = mc
	}

	engine := &Engine{
		config:    cfg,
		codec:     codec,
		cache:     cache,
		store:     b.store,
		hasher:    hasher,
		dummyHash: dummyHash,
		redis:     b.redis,
		log:       logger,
		clock:     clock,
		metrics:   NewMetrics(cfg.Metrics),
	}

	// -------- REVOCATION LIST --------
	if cfg.Revocation.Enabled {
		switch {
		case b.revocations != nil:
			engine.revocations = b.revocations
		case b.redis != nil:
			engine.revocations = session.NewRedisRevocations(b.redis, cfg.Revocation.RedisPrefix)
		default:
			engine.revocations = session.NewMemoryRevocations(cfg.Session.Duration).WithClock(clock)
		}
	}

	// -------- LOGIN THROTTLE --------
	if cfg.RateLimit.Enabled && b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.RateLimit.RedisPrefix,
			MaxAttempts:      cfg.RateLimit.MaxAttempts,
			Window:           cfg.RateLimit.Window,
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
		})
	}

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev audit.Event) {
			logger.WithField("event", ev.EventType).Warn("audit buffer full, event dropped")
		},
	}, b.auditSink)

	// -------- JANITOR --------
	if cfg.Janitor.Enabled {
		j, err := newJanitor(engine, cfg.Janitor.Schedule)
		if err != nil {
			engine.audit.Close()
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		engine.janitor = j
		j.Start()
	}

	b.built = true

	return engine, nil
}
