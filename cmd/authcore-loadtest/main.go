// Command authcore-loadtest measures ValidateSession and RefreshToken
// throughput of an in-process Engine backed by an in-memory user store and
// Redis (miniredis when no address is given).
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/password"
	"github.com/nemoserver/authcore/provision"
	"github.com/nemoserver/authcore/store/memstore"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type sessionState struct {
	mu  sync.Mutex
	tok string
}

func main() {
	var (
		users       = flag.Int("users", 100, "number of accounts to create")
		sessions    = flag.Int("sessions", 10000, "number of sessions to issue")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		cold        = flag.Bool("cold", false, "drop each token from the cache before validating it")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	ctx := context.Background()

	client, cleanup, err := connectRedis(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	store, err := seedUsers(ctx, *users, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed users: %v\n", err)
		os.Exit(1)
	}

	cfg := authcore.DefaultConfig()
	cfg.Password.BcryptCost = bcrypt.MinCost
	cfg.Session.RefreshInterval = 0
	cfg.RateLimit.Enabled = false
	engine, err := authcore.New().
		WithConfig(cfg).
		WithStore(store).
		WithRedis(client).
		WithLogger(logger).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]sessionState, *sessions)
	fmt.Printf("issuing %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range states {
		tok, err := engine.Authenticate(ctx, userName(i%*users), userPassword(i%*users), "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		states[i].tok = tok
	}
	fmt.Printf("issued in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(states, *ops, *concurrency, 7919, func(st *sessionState) error {
		st.mu.Lock()
		tok := st.tok
		st.mu.Unlock()
		if *cold {
			engine.EvictCached(tok)
		}
		_, err := engine.ValidateSession(ctx, tok)
		return err
	})
	refreshStats := runPhase(states, *ops, *concurrency, 6151, func(st *sessionState) error {
		st.mu.Lock()
		defer st.mu.Unlock()
		next, err := engine.RefreshToken(ctx, st.tok, "")
		if err == nil {
			st.tok = next
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	snap := engine.MetricsSnapshot()
	fmt.Printf("cache hits=%d misses=%d rotated=%d revoked=%d\n",
		snap.Counters[authcore.MetricValidateCacheHit],
		snap.Counters[authcore.MetricValidateCacheMiss],
		snap.Counters[authcore.MetricRefreshRotated],
		snap.Counters[authcore.MetricSessionRevoked],
	)
}

func connectRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seedUsers(ctx context.Context, n int, logger logrus.FieldLogger) (*memstore.Store, error) {
	hasher, err := password.New(password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	if err != nil {
		return nil, err
	}
	accounts := make([]provision.Account, n)
	for i := range accounts {
		accounts[i] = provision.Account{
			Username:  userName(i),
			Password:  userPassword(i),
			Role:      account.RoleUser,
			SpeakerID: userName(i),
		}
	}
	store := memstore.New()
	_, err = provision.Seed(ctx, store, hasher, provision.Options{Accounts: accounts, Logger: logger})
	return store, err
}

func userName(i int) string     { return fmt.Sprintf("speaker-%d", i) }
func userPassword(i int) string { return fmt.Sprintf("pw-%d", i) }

func runPhase(states []sessionState, ops, concurrency int, seed int64, op func(*sessionState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				st := &states[r.Intn(len(states))]
				t0 := time.Now()
				err := op(st)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
