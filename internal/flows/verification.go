package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal/invalidate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/model"
)

// VerifyOutput is the verified account and its first session token.
type VerifyOutput struct {
	Account      model.Account
	SessionToken string
}

// RunVerifyOTP moves an account from PendingVerification to Verified when code
// matches the pending verification OTP.
func RunVerifyOTP(ctx context.Context, email, code string, deps Deps) (VerifyOutput, error) {
	normalizeDeps(&deps)
	if !deps.ready() {
		return VerifyOutput{}, deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	acct, err := deps.findByEmail(ctx, "verify_otp.find", email)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			// Unknown address reads as "no matching pending code".
			deps.MetricInc(deps.Metrics.OTPVerifyFailure)
			deps.EmitAudit(ctx, EventVerifyOTP, "", deps.Errors.InvalidOTP, map[string]string{"reason": "unknown_email"})
			return VerifyOutput{}, deps.Errors.InvalidOTP
		}
		return VerifyOutput{}, err
	}

	outcome, changed := checkOTP(&acct, model.OTPVerification, code, deps.Now(), &deps)
	if outcome != otpMatched {
		if changed {
			if err := deps.save(ctx, "verify_otp.save_attempt", &acct); err != nil {
				return VerifyOutput{}, err
			}
		}
		deps.MetricInc(deps.Metrics.OTPVerifyFailure)
		if outcome == otpExhausted {
			deps.MetricInc(deps.Metrics.OTPAttemptsExceeded)
		}
		deps.EmitAudit(ctx, EventVerifyOTP, acct.ID, deps.Errors.InvalidOTP, map[string]string{"reason": outcomeReason(outcome)})
		return VerifyOutput{}, deps.Errors.InvalidOTP
	}

	acct.Verified = true
	if err := deps.save(ctx, "verify_otp.save", &acct); err != nil {
		return VerifyOutput{}, err
	}
	deps.Evict(ctx, EventVerifyOTP, invalidate.CredentialsChanged(acct.Email, acct.ID)...)
	deps.Invalidate(ctx, EventVerifyOTP, invalidate.AccountChanged(acct.Email, acct.ID)...)

	token, err := deps.IssueToken(acct.ID, jwt.PurposeSession, deps.Policy.SessionTTL)
	if err != nil {
		return VerifyOutput{}, err
	}

	deps.MetricInc(deps.Metrics.OTPVerifySuccess)
	deps.EmitAudit(ctx, EventVerifyOTP, acct.ID, nil, nil)
	return VerifyOutput{Account: acct, SessionToken: token}, nil
}

// RunResendOTP overwrites the pending verification code and redelivers it.
func RunResendOTP(ctx context.Context, email string, deps Deps) error {
	normalizeDeps(&deps)
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	acct, err := deps.findByEmail(ctx, "resend_otp.find", email)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			deps.EmitAudit(ctx, EventResendOTP, "", err, nil)
		}
		return err
	}
	if acct.Verified {
		deps.EmitAudit(ctx, EventResendOTP, acct.ID, deps.Errors.AlreadyVerified, nil)
		return deps.Errors.AlreadyVerified
	}
	if err := deps.throttle(ctx, EventResendOTP, acct); err != nil {
		return err
	}

	code, err := issueOTP(&acct, model.OTPVerification, &deps)
	if err != nil {
		return err
	}
	if err := deps.save(ctx, "resend_otp.save", &acct); err != nil {
		return err
	}

	deps.DeliverOTP(ctx, acct, code, model.OTPVerification)
	deps.MetricInc(deps.Metrics.OTPIssued)
	deps.EmitAudit(ctx, EventResendOTP, acct.ID, nil, nil)
	return nil
}

func outcomeReason(o otpOutcome) string {
	switch o {
	case otpNotPending:
		return "not_pending"
	case otpExhausted:
		return "attempts_exhausted"
	default:
		return "mismatch"
	}
}
