package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal/invalidate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/model"
)

// RunForgotPassword stores a reset OTP, arms the reset flow in OtpSent and
// schedules delivery.
func RunForgotPassword(ctx context.Context, email string, deps Deps) error {
	normalizeDeps(&deps)
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	acct, err := deps.findByEmail(ctx, "forgot_password.find", email)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			deps.EmitAudit(ctx, EventForgotPassword, "", err, nil)
		}
		return err
	}
	if err := deps.throttle(ctx, EventForgotPassword, acct); err != nil {
		return err
	}

	code, err := issueOTP(&acct, model.OTPReset, &deps)
	if err != nil {
		return err
	}
	acct.Reset = model.ResetFlow{
		State:     model.ResetOTPSent,
		ExpiresAt: deps.Now().Add(deps.Policy.ResetFlowTTL),
	}
	if err := deps.save(ctx, "forgot_password.save", &acct); err != nil {
		return err
	}

	deps.DeliverOTP(ctx, acct, code, model.OTPReset)
	deps.MetricInc(deps.Metrics.OTPIssued)
	deps.MetricInc(deps.Metrics.ResetRequest)
	deps.EmitAudit(ctx, EventForgotPassword, acct.ID, nil, nil)
	return nil
}

// RunVerifyResetOTP advances the reset flow from OtpSent to OtpVerified and issues a
// password-reset token. An absent or expired flow fails closed with Expired.
func RunVerifyResetOTP(ctx context.Context, email, code string, deps Deps) (string, error) {
	normalizeDeps(&deps)
	if !deps.ready() {
		return "", deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	acct, err := deps.findByEmail(ctx, "verify_reset_otp.find", email)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			deps.MetricInc(deps.Metrics.ResetOTPFailure)
			deps.EmitAudit(ctx, EventVerifyResetOTP, "", deps.Errors.Expired, map[string]string{"reason": "unknown_email"})
			return "", deps.Errors.Expired
		}
		return "", err
	}

	now := deps.Now()
	if acct.Reset.Current(now) != model.ResetOTPSent {
		deps.MetricInc(deps.Metrics.ResetOTPFailure)
		deps.EmitAudit(ctx, EventVerifyResetOTP, acct.ID, deps.Errors.Expired, map[string]string{"reason": "flow_" + acct.Reset.Current(now).String()})
		return "", deps.Errors.Expired
	}

	outcome, changed := checkOTP(&acct, model.OTPReset, code, now, &deps)
	if outcome != otpMatched {
		if outcome == otpExhausted || outcome == otpNotPending {
			// Nothing left to verify against; the flow is over.
			acct.Reset = model.ResetFlow{}
			changed = true
		}
		if outcome == otpExhausted {
			deps.MetricInc(deps.Metrics.OTPAttemptsExceeded)
		}
		if changed {
			if err := deps.save(ctx, "verify_reset_otp.save_attempt", &acct); err != nil {
				return "", err
			}
		}
		deps.MetricInc(deps.Metrics.ResetOTPFailure)
		deps.EmitAudit(ctx, EventVerifyResetOTP, acct.ID, deps.Errors.InvalidOTP, map[string]string{"reason": outcomeReason(outcome)})
		return "", deps.Errors.InvalidOTP
	}

	acct.Reset = model.ResetFlow{
		State:     model.ResetOTPVerified,
		ExpiresAt: now.Add(deps.Policy.ResetFlowTTL),
	}
	if err := deps.save(ctx, "verify_reset_otp.save", &acct); err != nil {
		return "", err
	}

	token, err := deps.IssueToken(acct.ID, jwt.PurposePasswordReset, deps.Policy.ResetTokenTTL)
	if err != nil {
		return "", err
	}

	deps.MetricInc(deps.Metrics.ResetOTPSuccess)
	deps.EmitAudit(ctx, EventVerifyResetOTP, acct.ID, nil, nil)
	return token, nil
}

// RunResetPassword completes the reset flow. It requires the flow in OtpVerified and
// a password-reset token for the same account; the flow is consumed on success so a
// replay fails with Unauthorized.
func RunResetPassword(ctx context.Context, email, newPassword, token string, deps Deps) error {
	normalizeDeps(&deps)
	if !deps.ready() || deps.ParseToken == nil {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	deny := func(accountID, reason string) error {
		deps.MetricInc(deps.Metrics.ResetUnauthorized)
		deps.EmitAudit(ctx, EventResetPassword, accountID, deps.Errors.Unauthorized, map[string]string{"reason": reason})
		return deps.Errors.Unauthorized
	}

	claims, err := deps.ParseToken(token)
	if err != nil || claims.Purpose != jwt.PurposePasswordReset {
		return deny("", "token")
	}

	acct, err := deps.findByEmail(ctx, "reset_password.find", email)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			return deny("", "unknown_email")
		}
		return err
	}
	if claims.Subject != acct.ID {
		return deny(acct.ID, "subject_mismatch")
	}
	if acct.Reset.Current(deps.Now()) != model.ResetOTPVerified {
		return deny(acct.ID, "flow_not_verified")
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return deps.MapPasswordError(err)
	}

	acct.PasswordHash = hash
	acct.ClearOTP()
	acct.Reset = model.ResetFlow{}
	if err := deps.save(ctx, "reset_password.save", &acct); err != nil {
		return err
	}
	deps.Evict(ctx, EventResetPassword, invalidate.CredentialsChanged(acct.Email, acct.ID)...)
	deps.Invalidate(ctx, EventResetPassword, invalidate.AccountChanged(acct.Email, acct.ID)...)

	deps.MetricInc(deps.Metrics.ResetSuccess)
	deps.EmitAudit(ctx, EventResetPassword, acct.ID, nil, nil)
	return nil
}

// RunChangePassword replaces the password of an authenticated account after checking
// the current one.
func RunChangePassword(ctx context.Context, accountID, oldPassword, newPassword string, deps Deps) error {
	normalizeDeps(&deps)
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	acct, err := deps.FindByID(ctx, accountID)
	if err != nil {
		return deps.MapStoreError("change_password.find", err)
	}

	ok, err := deps.VerifyPassword(oldPassword, acct.PasswordHash)
	if err != nil {
		return deps.MapPasswordError(err)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, EventChangePassword, acct.ID, deps.Errors.InvalidCredentials, nil)
		return deps.Errors.InvalidCredentials
	}

	if reused, _ := deps.VerifyPassword(newPassword, acct.PasswordHash); reused {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		deps.EmitAudit(ctx, EventChangePassword, acct.ID, deps.Errors.PasswordReuse, nil)
		return deps.Errors.PasswordReuse
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		return deps.MapPasswordError(err)
	}
	acct.PasswordHash = hash
	if err := deps.save(ctx, "change_password.save", &acct); err != nil {
		return err
	}
	deps.Evict(ctx, EventChangePassword, invalidate.CredentialsChanged(acct.Email, acct.ID)...)
	deps.Invalidate(ctx, EventChangePassword, invalidate.AccountChanged(acct.Email, acct.ID)...)

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.EmitAudit(ctx, EventChangePassword, acct.ID, nil, nil)
	return nil
}
