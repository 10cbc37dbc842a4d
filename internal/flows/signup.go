package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/internal/username"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/model"
)

// SignUpInput is the caller-supplied registration data.
type SignUpInput struct {
	Name        string
	Email       string
	Password    string
	Username    string
	PhoneNumber string
	DateOfBirth time.Time
}

// SignUpOutput is a freshly created, unverified account and its verification token.
type SignUpOutput struct {
	Account           model.Account
	VerificationToken string
}

// RunSignUp creates an account in PendingVerification, stores a verification OTP
// digest and schedules delivery of the plaintext code.
func RunSignUp(ctx context.Context, in SignUpInput, deps Deps) (SignUpOutput, error) {
	normalizeDeps(&deps)
	if !deps.ready() || deps.CreateAccount == nil {
		return SignUpOutput{}, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if !validEmail(email) || !validName(name) {
		deps.EmitAudit(ctx, EventSignUp, "", deps.Errors.InvalidInput, map[string]string{"reason": "invalid_fields"})
		return SignUpOutput{}, deps.Errors.InvalidInput
	}

	if _, err := deps.findByEmail(ctx, "signup.find_email", email); err == nil {
		deps.MetricInc(deps.Metrics.SignUpConflict)
		deps.EmitAudit(ctx, EventSignUp, "", deps.Errors.Conflict, map[string]string{"reason": "email_taken"})
		return SignUpOutput{}, deps.Errors.Conflict
	} else if !errors.Is(err, deps.Errors.NotFound) {
		return SignUpOutput{}, err
	}

	handle, err := chooseUsername(ctx, in.Username, name, deps)
	if err != nil {
		if errors.Is(err, deps.Errors.Conflict) {
			deps.MetricInc(deps.Metrics.SignUpConflict)
		}
		deps.EmitAudit(ctx, EventSignUp, "", err, map[string]string{"reason": "username"})
		return SignUpOutput{}, err
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return SignUpOutput{}, deps.MapPasswordError(err)
	}

	now := deps.Now()
	acct := model.Account{
		ID:           deps.NewID(),
		Email:        email,
		Name:         name,
		Username:     handle,
		PasswordHash: hash,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		DateOfBirth:  in.DateOfBirth,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	code, err := issueOTP(&acct, model.OTPVerification, &deps)
	if err != nil {
		return SignUpOutput{}, err
	}

	if err := deps.CreateAccount(ctx, acct); err != nil {
		mapped := deps.MapStoreError("signup.create", err)
		if errors.Is(mapped, deps.Errors.Conflict) {
			deps.MetricInc(deps.Metrics.SignUpConflict)
			deps.EmitAudit(ctx, EventSignUp, "", mapped, map[string]string{"reason": "create_conflict"})
		}
		return SignUpOutput{}, mapped
	}

	deps.DeliverOTP(ctx, acct, code, model.OTPVerification)
	deps.MetricInc(deps.Metrics.OTPIssued)

	token, err := deps.IssueToken(acct.ID, jwt.PurposeEmailVerification, deps.Policy.VerificationTTL)
	if err != nil {
		return SignUpOutput{}, err
	}

	deps.MetricInc(deps.Metrics.SignUpSuccess)
	deps.EmitAudit(ctx, EventSignUp, acct.ID, nil, nil)
	return SignUpOutput{Account: acct, VerificationToken: token}, nil
}

func chooseUsername(ctx context.Context, requested, name string, deps Deps) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		if deps.GenerateUsername == nil {
			return "", deps.Errors.EngineNotReady
		}
		return deps.GenerateUsername(ctx, name)
	}

	if !username.Valid(requested) {
		return "", deps.Errors.InvalidInput
	}
	if deps.UsernameTaken == nil {
		return "", deps.Errors.EngineNotReady
	}
	taken, err := deps.UsernameTaken(ctx, requested)
	if err != nil {
		return "", deps.MapStoreError("signup.username_taken", err)
	}
	if taken {
		return "", deps.Errors.Conflict
	}
	return requested, nil
}
