package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/httpapi"
	"github.com/nemoserver/authcore/metrics/export/prometheus"
	"github.com/nemoserver/authcore/middleware"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serve(ctx context.Context, args []string) error {
	fs := newFlagSet("serve", c.out)
	addr := fs.String("addr", "", "listen address; defaults to HTTP_ADDR")
	seed := fs.Bool("seed", true, "create the default accounts when missing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := c.open(ctx, openOptions{engine: true, janitor: true, metrics: true})
	if err != nil {
		return err
	}
	defer a.close()

	if *seed {
		if _, err := c.seedDefaults(ctx, a); err != nil {
			return err
		}
	}
	for _, f := range a.engCfg.Lint() {
		c.log.WithField("code", f.Code).Warn(f.Message)
	}

	listen := *addr
	if listen == "" {
		listen = a.cfg.HTTPAddr
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           newServeMux(a.engine, c),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.log.WithField("addr", listen).Info("authcore listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newServeMux(engine *authcore.Engine, c *cli) *http.ServeMux {
	mux := httpapi.New(engine, c.log).Routes()
	mux.Handle("GET /metrics", prometheus.NewCollector(engine).Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		hs := engine.Health(r.Context())
		status := http.StatusOK
		if !hs.StoreAvailable || (hs.RedisEnabled && !hs.RedisAvailable) {
			status = http.StatusServiceUnavailable
		}
		middleware.WriteJSON(w, status, hs)
	})
	return mux
}
