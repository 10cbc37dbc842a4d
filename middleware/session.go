package middleware

import "net/http"

// RequireSession admits requests that carry a valid session token and rejects
// everything else with a JSON error. Verification and reset tokens are refused.
func RequireSession(v Verifier) func(http.Handler) http.Handler {
	return Guard(v)
}
