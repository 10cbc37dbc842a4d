package metrics

import (
	"sync/atomic"
	"time"
)

// BucketCount is the fixed number of latency histogram buckets.
const BucketCount = 8

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [BucketCount]uint64
}

// Set is a fixed-size array of counters plus an optional histogram per slot.
//
// Slots are addressed by small integers; out-of-range slots are ignored.
type Set struct {
	counters   []paddedCounter
	histograms []histogram
	latency    []bool
}

// NewSet allocates size counters. Histograms are recorded only for latencySlots.
func NewSet(size int, latencySlots ...int) *Set {
	if size < 0 {
		size = 0
	}
	s := &Set{
		counters:   make([]paddedCounter, size),
		histograms: make([]histogram, size),
		latency:    make([]bool, size),
	}
	for _, slot := range latencySlots {
		if slot >= 0 && slot < size {
			s.latency[slot] = true
		}
	}
	return s
}

// Inc adds one to slot.
func (s *Set) Inc(slot int) {
	if s == nil || slot < 0 || slot >= len(s.counters) {
		return
	}
	atomic.AddUint64(&s.counters[slot].value, 1)
}

// Observe records d into slot's histogram when slot tracks latency.
func (s *Set) Observe(slot int, d time.Duration) {
	if s == nil || slot < 0 || slot >= len(s.counters) || !s.latency[slot] {
		return
	}
	atomic.AddUint64(&s.histograms[slot].buckets[BucketIndex(d)], 1)
}

// Load returns slot's current counter value.
func (s *Set) Load(slot int) uint64 {
	if s == nil || slot < 0 || slot >= len(s.counters) {
		return 0
	}
	return atomic.LoadUint64(&s.counters[slot].value)
}

// Buckets returns a non-cumulative copy of slot's histogram, or nil when slot has none.
func (s *Set) Buckets(slot int) []uint64 {
	if s == nil || slot < 0 || slot >= len(s.counters) || !s.latency[slot] {
		return nil
	}
	out := make([]uint64, BucketCount)
	for i := 0; i < BucketCount; i++ {
		out[i] = atomic.LoadUint64(&s.histograms[slot].buckets[i])
	}
	return out
}

// Size returns the number of slots.
func (s *Set) Size() int {
	if s == nil {
		return 0
	}
	return len(s.counters)
}

// BucketIndex maps a duration onto the fixed bucket layout.
func BucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
