// Package jwt issues and verifies purpose-scoped bearer tokens.
//
// Every token carries sub, iat, exp, jti and a purpose claim. Parse classifies
// failures as [ErrExpired], [ErrBadSignature] or [ErrMalformed] so callers can
// map them without inspecting library errors. There is no revocation list: a
// token stays valid until exp.
package jwt
