package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterNamesArePrefixedAndUnique(t *testing.T) {
	seen := make(map[string]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, Prefix) || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		if strings.Contains(def.Name, "unknown") {
			t.Fatalf("counter %d has no name", def.ID)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate counter %q", def.Name)
		}
		seen[def.Name] = true
	}
	if !seen["authcore_login_success_total"] {
		t.Fatal("expected authcore_login_success_total")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(HistogramBoundSuffix) != len(HistogramBounds)+1 {
		t.Fatal("suffixes must cover every bound plus +Inf")
	}
}
