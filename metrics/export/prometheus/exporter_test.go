package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nemoserver/authcore"
	"github.com/nemoserver/authcore/account"
	"github.com/nemoserver/authcore/store/memstore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"
)

type fakeSource struct {
	snapshot authcore.MetricsSnapshot
	dropped  uint64
	cached   int
}

func (f fakeSource) MetricsSnapshot() authcore.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }
func (f fakeSource) CacheLen() int                             { return f.cached }

func TestCollectorDisabledMetricsExportOnlyGauges(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters:   map[authcore.MetricID]uint64{},
			Histograms: map[authcore.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(c); n != 2 {
		t.Fatalf("expected only the audit and cache series, got %d", n)
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{
				authcore.MetricLoginSuccess: 7,
				authcore.MetricLogout:       0,
			},
			Histograms: map[authcore.MetricID][]uint64{
				authcore.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
		cached:  3,
	})

	expected := `
# HELP authcore_login_success_total Successful logins.
# TYPE authcore_login_success_total counter
authcore_login_success_total 7
# HELP authcore_audit_dropped_total Audit events dropped because the dispatcher buffer was full.
# TYPE authcore_audit_dropped_total counter
authcore_audit_dropped_total 2
# HELP authcore_cached_sessions Sessions currently held in the session cache.
# TYPE authcore_cached_sessions gauge
authcore_cached_sessions 3
# HELP authcore_validate_latency_seconds ValidateSession latency.
# TYPE authcore_validate_latency_seconds histogram
authcore_validate_latency_seconds_bucket{le="0.005"} 1
authcore_validate_latency_seconds_bucket{le="0.01"} 3
authcore_validate_latency_seconds_bucket{le="0.025"} 6
authcore_validate_latency_seconds_bucket{le="0.05"} 10
authcore_validate_latency_seconds_bucket{le="0.1"} 15
authcore_validate_latency_seconds_bucket{le="0.25"} 21
authcore_validate_latency_seconds_bucket{le="0.5"} 28
authcore_validate_latency_seconds_bucket{le="+Inf"} 36
authcore_validate_latency_seconds_sum 0
authcore_validate_latency_seconds_count 36
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"authcore_login_success_total",
		"authcore_audit_dropped_total",
		"authcore_cached_sessions",
		"authcore_validate_latency_seconds",
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestCollectorLintsClean(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: authcore.MetricsSnapshot{
			Counters: map[authcore.MetricID]uint64{authcore.MetricLoginSuccess: 1},
		},
	})
	problems, err := testutil.CollectAndLint(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("lint problems: %v", problems)
	}
}

func TestHandlerServesEngineMetrics(t *testing.T) {
	store := memstore.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveUser(context.Background(), &account.Record{
		UserID:       "u-1",
		Username:     "alice",
		PasswordHash: string(hash),
		Role:         account.RoleUser,
		SpeakerID:    account.StringPtr("alice"),
	}); err != nil {
		t.Fatal(err)
	}

	cfg := authcore.DefaultConfig()
	cfg.Token.Key = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.BcryptCost = bcrypt.MinCost
	e, err := authcore.New().WithConfig(cfg).WithStore(store).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, err := e.Authenticate(context.Background(), "alice", "pw", ""); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	NewCollector(e).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"authcore_login_success_total 1", "authcore_cached_sessions 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in output:\n%s", want, body)
		}
	}
}
