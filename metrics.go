package goIdentity

import (
	"time"

	internalmetrics "github.com/MrEthical07/goIdentity/internal/metrics"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricSignUpSuccess counts created accounts.
	MetricSignUpSuccess MetricID = iota
	// MetricSignUpConflict counts sign-ups rejected for a taken email or username.
	MetricSignUpConflict
	// MetricOTPIssued counts generated codes of any purpose.
	MetricOTPIssued
	// MetricOTPVerifySuccess is an exported constant or variable used by the identity engine.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure is an exported constant or variable used by the identity engine.
	MetricOTPVerifyFailure
	// MetricOTPAttemptsExceeded counts codes discarded after too many wrong tries.
	MetricOTPAttemptsExceeded
	// MetricOTPDelivered counts codes handed to the deliverer successfully.
	MetricOTPDelivered
	// MetricOTPDeliveryFailed counts deliveries that failed after all retries.
	MetricOTPDeliveryFailed
	// MetricOTPRateLimited counts code requests refused by the per-address budget.
	MetricOTPRateLimited
	// MetricLoginSuccess is an exported constant or variable used by the identity engine.
	MetricLoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the identity engine.
	MetricLoginFailure
	// MetricLoginVerificationRequired counts logins by unverified accounts.
	MetricLoginVerificationRequired
	// MetricPasswordResetRequest is an exported constant or variable used by the identity engine.
	MetricPasswordResetRequest
	// MetricPasswordResetOTPSuccess is an exported constant or variable used by the identity engine.
	MetricPasswordResetOTPSuccess
	// MetricPasswordResetOTPFailure is an exported constant or variable used by the identity engine.
	MetricPasswordResetOTPFailure
	// MetricPasswordResetSuccess is an exported constant or variable used by the identity engine.
	MetricPasswordResetSuccess
	// MetricPasswordResetUnauthorized counts reset attempts without a verified flow or token.
	MetricPasswordResetUnauthorized
	// MetricPasswordChangeSuccess is an exported constant or variable used by the identity engine.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure is an exported constant or variable used by the identity engine.
	MetricPasswordChangeFailure
	// MetricTokenValid is an exported constant or variable used by the identity engine.
	MetricTokenValid
	// MetricTokenInvalid is an exported constant or variable used by the identity engine.
	MetricTokenInvalid
	// MetricTokenRefreshed counts sliding-session reissues.
	MetricTokenRefreshed
	// MetricLogout is an exported constant or variable used by the identity engine.
	MetricLogout
	// MetricCacheHit is an exported constant or variable used by the identity engine.
	MetricCacheHit
	// MetricCacheMiss is an exported constant or variable used by the identity engine.
	MetricCacheMiss
	// MetricCacheError counts cache operations that failed or were skipped as unavailable.
	MetricCacheError
	// MetricInvalidationFailed counts key families left to expire by TTL.
	MetricInvalidationFailed
	// MetricTaskFailed counts background tasks that returned an error.
	MetricTaskFailed
	// MetricProfileUpdated is an exported constant or variable used by the identity engine.
	MetricProfileUpdated
	// MetricUsernameChanged is an exported constant or variable used by the identity engine.
	MetricUsernameChanged
	// MetricPostCreated is an exported constant or variable used by the identity engine.
	MetricPostCreated
	// MetricPostDeleted is an exported constant or variable used by the identity engine.
	MetricPostDeleted
	// MetricFollow is an exported constant or variable used by the identity engine.
	MetricFollow
	// MetricUnfollow is an exported constant or variable used by the identity engine.
	MetricUnfollow
	// MetricLoginLatency is a histogram of Login durations.
	MetricLoginLatency
	// MetricVerifyTokenLatency is a histogram of VerifyToken durations.
	MetricVerifyTokenLatency
	metricIDCount
)

// HistogramBucketCount is the number of latency buckets per histogram.
const HistogramBucketCount = internalmetrics.BucketCount

// Metrics holds engine counters. A disabled Metrics ignores updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	set           *internalmetrics.Set
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates counters according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
		set:           internalmetrics.NewSet(int(metricIDCount), int(MetricLoginLatency), int(MetricVerifyTokenLatency)),
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.set.Inc(int(id))
}

// Observe records d in the histogram for id when latency histograms are enabled.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id >= metricIDCount {
		return
	}
	m.set.Observe(int(id), d)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.set.Load(int(id))
}

// Snapshot copies all counters, plus histograms when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.set.Load(int(id))
	}
	if m.enableLatency {
		s.Histograms[MetricLoginLatency] = m.set.Buckets(int(MetricLoginLatency))
		s.Histograms[MetricVerifyTokenLatency] = m.set.Buckets(int(MetricVerifyTokenLatency))
	}
	return s
}
