package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef binds a counter MetricID to its exported name.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef binds a latency MetricID to its exported name.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricSignUpSuccess, Name: "goidentity_signup_success_total", Help: "Created accounts."},
	{ID: goIdentity.MetricSignUpConflict, Name: "goidentity_signup_conflict_total", Help: "Sign-ups rejected for a taken email or username."},
	{ID: goIdentity.MetricOTPIssued, Name: "goidentity_otp_issued_total", Help: "Generated one-time codes."},
	{ID: goIdentity.MetricOTPVerifySuccess, Name: "goidentity_otp_verify_success_total", Help: "Accepted account verification codes."},
	{ID: goIdentity.MetricOTPVerifyFailure, Name: "goidentity_otp_verify_failure_total", Help: "Rejected account verification codes."},
	{ID: goIdentity.MetricOTPAttemptsExceeded, Name: "goidentity_otp_attempts_exceeded_total", Help: "Codes discarded after too many wrong tries."},
	{ID: goIdentity.MetricOTPDelivered, Name: "goidentity_otp_delivered_total", Help: "Codes handed to the deliverer."},
	{ID: goIdentity.MetricOTPDeliveryFailed, Name: "goidentity_otp_delivery_failed_total", Help: "Code deliveries that failed after all retries."},
	{ID: goIdentity.MetricOTPRateLimited, Name: "goidentity_otp_rate_limited_total", Help: "Code requests refused by the per-address budget."},
	{ID: goIdentity.MetricLoginSuccess, Name: "goidentity_login_success_total", Help: "Successful logins."},
	{ID: goIdentity.MetricLoginFailure, Name: "goidentity_login_failure_total", Help: "Failed logins."},
	{ID: goIdentity.MetricLoginVerificationRequired, Name: "goidentity_login_verification_required_total", Help: "Logins by unverified accounts."},
	{ID: goIdentity.MetricPasswordResetRequest, Name: "goidentity_password_reset_request_total", Help: "Password reset requests."},
	{ID: goIdentity.MetricPasswordResetOTPSuccess, Name: "goidentity_password_reset_otp_success_total", Help: "Accepted reset codes."},
	{ID: goIdentity.MetricPasswordResetOTPFailure, Name: "goidentity_password_reset_otp_failure_total", Help: "Rejected reset codes."},
	{ID: goIdentity.MetricPasswordResetSuccess, Name: "goidentity_password_reset_success_total", Help: "Completed password resets."},
	{ID: goIdentity.MetricPasswordResetUnauthorized, Name: "goidentity_password_reset_unauthorized_total", Help: "Reset attempts without a verified flow or token."},
	{ID: goIdentity.MetricPasswordChangeSuccess, Name: "goidentity_password_change_success_total", Help: "Successful password changes."},
	{ID: goIdentity.MetricPasswordChangeFailure, Name: "goidentity_password_change_failure_total", Help: "Failed password changes."},
	{ID: goIdentity.MetricTokenValid, Name: "goidentity_token_valid_total", Help: "Accepted session tokens."},
	{ID: goIdentity.MetricTokenInvalid, Name: "goidentity_token_invalid_total", Help: "Rejected session tokens."},
	{ID: goIdentity.MetricTokenRefreshed, Name: "goidentity_token_refreshed_total", Help: "Sliding-session reissues."},
	{ID: goIdentity.MetricLogout, Name: "goidentity_logout_total", Help: "Logouts."},
	{ID: goIdentity.MetricCacheHit, Name: "goidentity_cache_hit_total", Help: "Cache hits."},
	{ID: goIdentity.MetricCacheMiss, Name: "goidentity_cache_miss_total", Help: "Cache misses."},
	{ID: goIdentity.MetricCacheError, Name: "goidentity_cache_error_total", Help: "Cache operations that failed or were skipped."},
	{ID: goIdentity.MetricInvalidationFailed, Name: "goidentity_invalidation_failed_total", Help: "Key families left to expire by TTL."},
	{ID: goIdentity.MetricTaskFailed, Name: "goidentity_task_failed_total", Help: "Background tasks that returned an error."},
	{ID: goIdentity.MetricProfileUpdated, Name: "goidentity_profile_updated_total", Help: "Profile updates."},
	{ID: goIdentity.MetricUsernameChanged, Name: "goidentity_username_changed_total", Help: "Username changes."},
	{ID: goIdentity.MetricPostCreated, Name: "goidentity_post_created_total", Help: "Created posts."},
	{ID: goIdentity.MetricPostDeleted, Name: "goidentity_post_deleted_total", Help: "Deleted posts."},
	{ID: goIdentity.MetricFollow, Name: "goidentity_follow_total", Help: "Follow operations."},
	{ID: goIdentity.MetricUnfollow, Name: "goidentity_unfollow_total", Help: "Unfollow operations."},
}

// HistogramDefs lists every latency histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricLoginLatency, Name: "goidentity_login_latency_seconds", Help: "Login latency histogram."},
	{ID: goIdentity.MetricVerifyTokenLatency, Name: "goidentity_verify_token_latency_seconds", Help: "VerifyToken latency histogram."},
}

// Source is what exporters read on every collection.
type Source interface {
	MetricsSnapshot() goIdentity.MetricsSnapshot
	AuditDropped() uint64
	BackgroundStats() goIdentity.BackgroundStats
	CacheAvailable() bool
}

// State is the engine state read alongside the counter snapshot.
type State struct {
	AuditDropped   uint64
	Background     goIdentity.BackgroundStats
	CacheAvailable bool
}

// ReadState collects State from src.
func ReadState(src Source) State {
	return State{
		AuditDropped:   src.AuditDropped(),
		Background:     src.BackgroundStats(),
		CacheAvailable: src.CacheAvailable(),
	}
}

// StateKind says how an exporter should type a StateDef.
type StateKind uint8

const (
	// StateCounter is monotonic.
	StateCounter StateKind = iota
	// StateGauge can go down.
	StateGauge
)

// StateDef binds one State value to its exported name.
type StateDef struct {
	Name  string
	Help  string
	Kind  StateKind
	Value func(State) int64
}

// AuditDroppedName is the counter for audit events discarded under backpressure.
const AuditDroppedName = "goidentity_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// StateDefs lists every state-derived series in export order.
var StateDefs = []StateDef{
	{
		Name:  AuditDroppedName,
		Help:  AuditDroppedHelp,
		Kind:  StateCounter,
		Value: func(s State) int64 { return int64(s.AuditDropped) },
	},
	{
		Name:  "goidentity_tasks_completed_total",
		Help:  "Background tasks run to completion.",
		Kind:  StateCounter,
		Value: func(s State) int64 { return int64(s.Background.Completed) },
	},
	{
		Name:  "goidentity_tasks_dropped_total",
		Help:  "Background tasks rejected because the queue was full.",
		Kind:  StateCounter,
		Value: func(s State) int64 { return int64(s.Background.Dropped) },
	},
	{
		Name:  "goidentity_tasks_queued",
		Help:  "Background tasks waiting for a worker.",
		Kind:  StateGauge,
		Value: func(s State) int64 { return int64(s.Background.Queued) },
	},
	{
		Name: "goidentity_cache_available",
		Help: "1 when the cache tier is configured and reachable, 0 otherwise.",
		Kind: StateGauge,
		Value: func(s State) int64 {
			if s.CacheAvailable {
				return 1
			}
			return 0
		},
	},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket for exporters without native histograms.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero filling missing buckets.
func NormalizeBuckets(raw []uint64) [goIdentity.HistogramBucketCount]uint64 {
	var out [goIdentity.HistogramBucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [goIdentity.HistogramBucketCount]uint64) [goIdentity.HistogramBucketCount]uint64 {
	var out [goIdentity.HistogramBucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
