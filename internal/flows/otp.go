package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/model"
)

type otpOutcome uint8

const (
	otpMatched otpOutcome = iota
	otpNotPending
	otpMismatch
	otpExhausted
)

// issueOTP overwrites any pending code on acct. The plaintext is returned for delivery
// only; the record keeps the digest.
func issueOTP(acct *model.Account, purpose model.OTPPurpose, deps *Deps) (string, error) {
	code, err := deps.NewOTP(deps.Policy.OTPDigits)
	if err != nil {
		return "", err
	}
	acct.OTP = model.OTPState{
		Hash:      deps.HashOTP(code),
		Purpose:   purpose,
		ExpiresAt: deps.Now().Add(deps.Policy.OTPTTL),
	}
	return code, nil
}

// checkOTP compares code against acct's pending code and mutates acct accordingly:
// a match or exhausted attempts clears the code, a mismatch counts an attempt.
// changed reports whether acct must be saved.
func checkOTP(acct *model.Account, purpose model.OTPPurpose, code string, now time.Time, deps *Deps) (outcome otpOutcome, changed bool) {
	if !acct.OTP.Pending(purpose, now) {
		if acct.OTP.Purpose == purpose {
			// expired code of this purpose
			acct.ClearOTP()
			return otpNotPending, true
		}
		return otpNotPending, false
	}

	if !deps.MatchOTP(acct.OTP.Hash, code) {
		acct.OTP.Attempts++
		if acct.OTP.Attempts >= deps.Policy.OTPMaxAttempts {
			acct.ClearOTP()
			return otpExhausted, true
		}
		return otpMismatch, true
	}

	acct.ClearOTP()
	return otpMatched, true
}

// throttle applies the per-address code request budget.
func (d *Deps) throttle(ctx context.Context, event string, acct model.Account) error {
	if err := d.ThrottleOTP(ctx, acct.Email); err != nil {
		if errors.Is(err, d.Errors.RateLimited) {
			d.MetricInc(d.Metrics.OTPRateLimited)
			d.EmitAudit(ctx, event, acct.ID, err, map[string]string{"reason": "rate_limited"})
		}
		return err
	}
	return nil
}

func (d *Deps) save(ctx context.Context, op string, acct *model.Account) error {
	acct.UpdatedAt = d.Now()
	if err := d.SaveCredentials(ctx, *acct); err != nil {
		return d.MapStoreError(op, err)
	}
	return nil
}

func (d *Deps) findByEmail(ctx context.Context, op, email string) (model.Account, error) {
	acct, err := d.FindByEmail(ctx, email)
	if err != nil {
		return model.Account{}, d.MapStoreError(op, err)
	}
	return acct, nil
}
