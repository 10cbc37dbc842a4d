package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestSetIncAndLoad(t *testing.T) {
	s := NewSet(4)
	s.Inc(1)
	s.Inc(1)
	s.Inc(9)
	s.Inc(-1)

	if got := s.Load(1); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := s.Load(9); got != 0 {
		t.Fatalf("expected out-of-range slot to read 0, got %d", got)
	}
}

func TestSetNilSafe(t *testing.T) {
	var s *Set
	s.Inc(0)
	s.Observe(0, time.Millisecond)
	if s.Load(0) != 0 || s.Buckets(0) != nil || s.Size() != 0 {
		t.Fatal("expected nil set to be inert")
	}
}

func TestSetConcurrentInc(t *testing.T) {
	s := NewSet(2)

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				s.Inc(0)
			}
		}()
	}
	wg.Wait()

	if got := s.Load(0); got != goroutines*perG {
		t.Fatalf("expected %d, got %d", goroutines*perG, got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	s := NewSet(2, 1)

	for _, d := range []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	} {
		s.Observe(1, d)
		s.Observe(0, d)
	}

	buckets := s.Buckets(1)
	if len(buckets) != BucketCount {
		t.Fatalf("expected %d buckets, got %d", BucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if s.Buckets(0) != nil {
		t.Fatal("expected slot without latency tracking to have no histogram")
	}
}
