package authcore

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricNamesAreComplete(t *testing.T) {
	seen := make(map[string]MetricID)
	for id := MetricID(0); id < metricIDCount; id++ {
		name := id.String()
		if name == "" {
			t.Fatalf("metric %d has no name", id)
		}
		if prev, ok := seen[name]; ok {
			t.Fatalf("metric name %q used by %d and %d", name, prev, id)
		}
		seen[name] = id
	}
	if metricIDCount.String() != "unknown" {
		t.Fatal("out of range id must be unknown")
	}
}

func TestMetricsCountersAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(MetricLoginSuccess)
	m.Add(MetricSessionsSwept, 5)
	m.Add(MetricSessionsSwept, 0)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	m.Observe(MetricValidateLatency, 30*time.Millisecond)
	m.Observe(MetricValidateLatency, time.Second)
	m.Observe(MetricLoginSuccess, time.Second)

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricSessionsSwept] != 5 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
	if _, ok := snap.Counters[MetricValidateLatency]; ok {
		t.Fatal("latency histogram must not appear as a counter")
	}
	buckets := snap.Histograms[MetricValidateLatency]
	want := []uint64{1, 0, 0, 1, 0, 0, 0, 1}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d = %d, want %d (%v)", i, buckets[i], want[i], buckets)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	if m.Value(MetricLoginSuccess) != 0 || m.LatencyEnabled() {
		t.Fatal("disabled metrics must record nothing")
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty, got %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	nilMetrics.Observe(MetricValidateLatency, time.Millisecond)
	if nilMetrics.Enabled() || len(nilMetrics.Snapshot().Counters) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	const workers, perWorker = 8, 1000

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricValidateSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricValidateSuccess); got != workers*perWorker {
		t.Fatalf("expected %d, got %d", workers*perWorker, got)
	}
}

func TestEngineRecordsValidationMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	e := newTestEngine(t, cfg)
	ctx := context.Background()

	tok := mustLogin(t, e.Engine, "user1", "user1pass")
	if _, err := e.ValidateSession(ctx, tok); err != nil {
		t.Fatalf("validate: %v", err)
	}
	_, _ = e.ValidateSession(ctx, "garbage")

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricSessionCreated] != 1 ||
		snap.Counters[MetricValidateSuccess] != 1 ||
		snap.Counters[MetricValidateFailure] != 1 ||
		snap.Counters[MetricValidateCacheHit] != 1 ||
		snap.Counters[MetricTokenInvalid] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}

	var total uint64
	for _, n := range snap.Histograms[MetricValidateLatency] {
		total += n
	}
	if total != 2 {
		t.Fatalf("expected 2 latency samples, got %d", total)
	}
}
