package goIdentity

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goIdentity/model"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/samber/oops"
)

var (
	// ErrConflict is returned when an email or username is already taken.
	ErrConflict = model.ErrConflict
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = model.ErrNotFound
	// ErrInvalidCredentials is returned on a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOTP is returned when no pending code matches.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrExpired is returned when the password reset flow is absent or expired.
	ErrExpired = errors.New("reset flow expired")
	// ErrUnauthorized is an exported constant or variable used by the identity engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrExhausted is returned when username generation ran out of candidates.
	ErrExhausted = errors.New("candidates exhausted")
	// ErrInvalidInput is an exported constant or variable used by the identity engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyVerified is returned by ResendOTP for a verified account.
	ErrAlreadyVerified = errors.New("account already verified")
	// ErrPasswordReuse is an exported constant or variable used by the identity engine.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrRateLimited is returned when an address asks for codes faster than the
	// configured request budget allows.
	ErrRateLimited = errors.New("too many code requests")
	// ErrEngineNotReady is an exported constant or variable used by the identity engine.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrInvalidToken is the parent of every token validation failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired wraps ErrInvalidToken.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
	// ErrTokenMalformed wraps ErrInvalidToken.
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	// ErrTokenBadSignature wraps ErrInvalidToken.
	ErrTokenBadSignature = fmt.Errorf("%w: bad signature", ErrInvalidToken)
)

// UsernameTakenError is returned by UpdateUsername when the requested handle is in use.
// It matches ErrConflict under errors.Is.
type UsernameTakenError struct {
	Username    string
	Suggestions []string
}

func (e *UsernameTakenError) Error() string {
	return fmt.Sprintf("username %q taken", e.Username)
}

// Unwrap returns ErrConflict.
func (e *UsernameTakenError) Unwrap() error {
	return ErrConflict
}

// Status is the transport-neutral outcome class of an engine call.
type Status uint8

const (
	// StatusOK is a plain success.
	StatusOK Status = iota
	// StatusVerificationRequired is a soft failure that still carries a verification token.
	StatusVerificationRequired
	// StatusClientError is caused by the request: bad input, wrong credentials, conflicts.
	StatusClientError
	// StatusUnauthorized covers missing, invalid or wrong-purpose tokens.
	StatusUnauthorized
	// StatusNotFound is returned for unknown accounts or posts.
	StatusNotFound
	// StatusRateLimited is returned when a request budget is spent.
	StatusRateLimited
	// StatusServerError is everything else.
	StatusServerError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusVerificationRequired:
		return "verification_required"
	case StatusClientError:
		return "client_error"
	case StatusUnauthorized:
		return "unauthorized"
	case StatusNotFound:
		return "not_found"
	case StatusRateLimited:
		return "rate_limited"
	default:
		return "server_error"
	}
}

// Classify maps an engine error to a Status. A nil error is StatusOK; callers that
// received a LoginResult with VerificationRequired should report
// StatusVerificationRequired themselves.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnauthorized):
		return StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return StatusRateLimited
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidOTP),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrExhausted),
		errors.Is(err, ErrAlreadyVerified),
		errors.Is(err, ErrPasswordReuse):
		return StatusClientError
	default:
		return StatusServerError
	}
}

// storeError keeps sentinel identity for ErrNotFound and ErrConflict and wraps every
// other adapter failure as a server error.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	}
	return oops.Code("STORE_FAILED").With("operation", op).Wrap(err)
}

func passwordError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, password.ErrPasswordTooShort), errors.Is(err, password.ErrPasswordTooLong):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
}
