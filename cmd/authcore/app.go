package main

import (
	"context"
	"fmt"
	"io"

	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/internal/config"
	"github.com/nemoserver/authcore/password"
	"github.com/nemoserver/authcore/store/sqlstore"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// cli carries what every subcommand shares.
type cli struct {
	out     io.Writer
	log     *logrus.Logger
	envFile string
}

// app is an opened configuration: store, optional Redis and optionally an
// Engine.
type app struct {
	cfg    *config.Config
	engCfg authcore.Config
	store  *sqlstore.Store
	redis  *redis.Client
	engine *authcore.Engine
}

type openOptions struct {
	engine  bool
	janitor bool
	metrics bool
}

func (c *cli) open(ctx context.Context, opts openOptions) (*app, error) {
	cfg, err := config.LoadFile(c.envFile)
	if err != nil {
		return nil, err
	}
	c.log.SetLevel(cfg.Level())

	engCfg, err := cfg.Engine()
	if err != nil {
		return nil, err
	}

	dialect, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.Open(ctx, dialect, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open user store: %w", err)
	}

	a := &app{cfg: cfg, engCfg: engCfg, store: store}
	if !opts.engine {
		return a, nil
	}

	if ro := cfg.RedisOptions(); ro != nil {
		a.redis = redis.NewClient(ro)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	engCfg.Janitor.Enabled = opts.janitor && engCfg.Janitor.Enabled
	engCfg.Metrics.Enabled = opts.metrics
	engCfg.Metrics.EnableLatencyHistograms = opts.metrics

	b := authcore.New().
		WithConfig(engCfg).
		WithStore(store).
		WithLogger(c.log)
	if a.redis != nil {
		b.WithRedis(a.redis)
	}
	if engCfg.Audit.Enabled {
		b.WithAuditSink(authcore.NewLogSink(c.log))
	}

	a.engine, err = b.Build()
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) hasher() (password.Hasher, error) {
	return password.New(password.Config{
		Algorithm:  a.engCfg.Password.Algorithm,
		BcryptCost: a.engCfg.Password.BcryptCost,
		Argon2:     a.engCfg.Password.Argon2,
	})
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
