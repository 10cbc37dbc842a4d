package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/model"
)

// SignUp creates an account in PendingVerification.
//
// The password is hashed, a username is generated when req.Username is empty, a
// verification code is stored hashed and delivered in the background, and a
// short-lived email-verification token is returned. SignUp returns ErrConflict when
// the email or requested username is taken, ErrInvalidInput for malformed fields and
// ErrExhausted when no free username was found.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	out, err := flows.RunSignUp(ctx, flows.SignUpInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Username:    req.Username,
		PhoneNumber: req.PhoneNumber,
		DateOfBirth: req.DateOfBirth,
	}, e.flowDeps)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{
		AccountID:         out.Account.ID,
		Username:          out.Account.Username,
		VerificationToken: out.VerificationToken,
	}, nil
}

// VerifyOTP marks the account verified when code matches the pending verification
// code, and returns a session token. Wrong, expired, exhausted or absent codes all
// yield ErrInvalidOTP.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string) (*VerifyResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	out, err := flows.RunVerifyOTP(ctx, email, code, e.flowDeps)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Identity:     model.IdentityOf(out.Account),
		SessionToken: out.SessionToken,
	}, nil
}

// ResendOTP replaces the pending verification code and delivers the new one.
// Verified accounts get ErrAlreadyVerified.
func (e *Engine) ResendOTP(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunResendOTP(ctx, email, e.flowDeps)
}
