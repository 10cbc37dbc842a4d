package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// ForgotPassword starts the reset flow: a reset code is stored hashed and delivered,
// and the flow moves to OtpSent.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunForgotPassword(ctx, email, e.flowDeps)
}

// VerifyResetOTP checks the reset code and returns a password-reset token.
//
// ErrExpired is returned when no reset flow is armed or it has lapsed. A wrong code
// returns ErrInvalidOTP; exhausting the attempt budget ends the flow.
func (e *Engine) VerifyResetOTP(ctx context.Context, email, code string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return flows.RunVerifyResetOTP(ctx, email, code, e.flowDeps)
}

// ResetPassword sets a new password. It requires the flow to be in OtpVerified and
// token to be a password-reset token for the same account; otherwise it returns
// ErrUnauthorized. The flow is consumed, so a replay also returns ErrUnauthorized.
func (e *Engine) ResetPassword(ctx context.Context, email, newPassword, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunResetPassword(ctx, email, newPassword, token, e.flowDeps)
}

// ChangePassword replaces the password of an authenticated account.
//
// ChangePassword returns ErrInvalidCredentials when oldPassword does not match and
// ErrPasswordReuse when newPassword equals the current one.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunChangePassword(ctx, accountID, oldPassword, newPassword, e.flowDeps)
}
