// Package flows implements the identity state machine as pure orchestration functions.
//
// # Architecture boundaries
//
// Each exported Run* function receives every collaborator through [Deps]: store
// lookups, hashing, token issuance, cache access and invalidation are plain function
// fields wired by the root Engine. Flows never import the root package; sentinel
// errors and metric ids arrive through Deps.Errors and Deps.Metrics.
//
// # State machine
//
//	Unregistered ──SignUp──▶ PendingVerification ──VerifyOTP──▶ Verified
//	Reset: Idle ──ForgotPassword──▶ OtpSent ──VerifyResetOTP──▶ OtpVerified ──ResetPassword──▶ Idle
//
// # What this package must NOT do
//
//   - Return cache errors; cache access is best-effort through Deps.CacheGet/CacheSet.
//   - Invalidate before the durable write has succeeded.
//   - Return from a credential change while its login or session projection is
//     still cached; those go through Deps.Evict, not the detached path.
//   - Issue a session token to an unverified account.
package flows
