package internaldefs

import (
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
)

func TestDefinitionsAreUnique(t *testing.T) {
	names := map[string]bool{}
	ids := map[goIdentity.MetricID]bool{}
	for _, def := range CounterDefs {
		if names[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		if ids[def.ID] {
			t.Fatalf("duplicate metric id %d", def.ID)
		}
		if !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %s must end in _total", def.Name)
		}
		names[def.Name] = true
		ids[def.ID] = true
	}
	for _, def := range HistogramDefs {
		if names[def.Name] || ids[def.ID] {
			t.Fatalf("histogram %s collides with a counter", def.Name)
		}
		names[def.Name] = true
		ids[def.ID] = true
	}
	for _, def := range StateDefs {
		if names[def.Name] {
			t.Fatalf("state series %s collides with another metric", def.Name)
		}
		if def.Kind == StateCounter && !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %s must end in _total", def.Name)
		}
		names[def.Name] = true
	}
}

func TestStateValues(t *testing.T) {
	state := State{
		AuditDropped:   5,
		Background:     goIdentity.BackgroundStats{Completed: 9, Dropped: 2, Queued: 1},
		CacheAvailable: true,
	}
	want := map[string]int64{
		AuditDroppedName:                   5,
		"goidentity_tasks_completed_total": 9,
		"goidentity_tasks_dropped_total":   2,
		"goidentity_tasks_queued":          1,
		"goidentity_cache_available":       1,
	}
	for _, def := range StateDefs {
		if got := def.Value(state); got != want[def.Name] {
			t.Fatalf("%s: got %d want %d", def.Name, got, want[def.Name])
		}
	}
}

func TestBucketLayoutMatchesEngine(t *testing.T) {
	if len(HistogramUpperBounds)+1 != goIdentity.HistogramBucketCount {
		t.Fatalf("expected %d finite bounds, got %d", goIdentity.HistogramBucketCount-1, len(HistogramUpperBounds))
	}
	if len(HistogramBoundSuffix) != goIdentity.HistogramBucketCount {
		t.Fatalf("expected %d suffixes, got %d", goIdentity.HistogramBucketCount, len(HistogramBoundSuffix))
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [goIdentity.HistogramBucketCount]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}
