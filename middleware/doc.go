// Package middleware adapts goIdentity.Engine token verification to net/http.
//
// # Guards
//
//   - [RequireSession]: verifies the bearer token with Engine.VerifyToken and puts the
//     resolved identity in the request context.
//   - [Guard]: the same with options (refresh header name, custom error writer).
//
// [WriteError] and [HTTPStatus] translate engine errors into HTTP responses for
// handlers that sit behind a guard.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; every decision is delegated to Engine.VerifyToken.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis or the durable stores.
//   - Route requests or render anything beyond a JSON error body.
package middleware
