package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/internal/cache"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/model"
)

// credentialView is the login projection cached under cred:{email}. Only verified
// accounts are ever cached.
type credentialView struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Verified     bool   `json:"verified"`
}

// LoginOutput carries either a session token or, for an unverified account, an
// email-verification token with VerificationRequired set.
type LoginOutput struct {
	AccountID            string
	Token                string
	VerificationRequired bool
}

// RunLogin authenticates email/password.
//
// A cached credential projection is consulted first; any doubt (miss, unverified,
// password mismatch, hash upgrade due) falls through to the durable store so a stale
// or missing projection never changes the outcome.
func RunLogin(ctx context.Context, email, password string, deps Deps) (LoginOutput, error) {
	normalizeDeps(&deps)
	if !deps.ready() {
		return LoginOutput{}, deps.Errors.EngineNotReady
	}

	email = NormalizeEmail(email)
	key := cache.CredentialKey(email)

	var cred credentialView
	if deps.CacheGet(ctx, key, &cred) && cred.Verified && cred.ID != "" && cred.Email == email {
		ok, err := deps.VerifyPassword(password, cred.PasswordHash)
		if err == nil && ok && !(deps.Policy.RehashOnLogin && deps.NeedsRehash(cred.PasswordHash)) {
			return issueSession(ctx, cred.ID, &deps)
		}
	}

	acct, err := deps.findByEmail(ctx, "login.find", email)
	if err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, EventLogin, "", err, map[string]string{"reason": "unknown_email"})
		}
		return LoginOutput{}, err
	}

	ok, err := deps.VerifyPassword(password, acct.PasswordHash)
	if err != nil {
		return LoginOutput{}, deps.MapPasswordError(err)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, EventLogin, acct.ID, deps.Errors.InvalidCredentials, nil)
		return LoginOutput{}, deps.Errors.InvalidCredentials
	}

	if !acct.Verified {
		return requireVerification(ctx, &acct, &deps)
	}

	if deps.Policy.RehashOnLogin && deps.NeedsRehash(acct.PasswordHash) {
		if upgraded, hashErr := deps.HashPassword(password); hashErr == nil {
			prev := acct.PasswordHash
			acct.PasswordHash = upgraded
			if saveErr := deps.save(ctx, "login.rehash", &acct); saveErr != nil {
				acct.PasswordHash = prev
			}
		}
	}

	out, err := issueSession(ctx, acct.ID, &deps)
	if err != nil {
		return LoginOutput{}, err
	}

	// Populate only after every check passed.
	deps.CacheSet(ctx, key, credentialView{
		ID:           acct.ID,
		Email:        acct.Email,
		Username:     acct.Username,
		PasswordHash: acct.PasswordHash,
		Verified:     true,
	}, deps.Policy.CredentialCacheTTL)
	return out, nil
}

func issueSession(ctx context.Context, accountID string, deps *Deps) (LoginOutput, error) {
	token, err := deps.IssueToken(accountID, jwt.PurposeSession, deps.Policy.SessionTTL)
	if err != nil {
		return LoginOutput{}, err
	}
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, EventLogin, accountID, nil, nil)
	return LoginOutput{AccountID: accountID, Token: token}, nil
}

func requireVerification(ctx context.Context, acct *model.Account, deps *Deps) (LoginOutput, error) {
	code, err := issueOTP(acct, model.OTPVerification, deps)
	if err != nil {
		return LoginOutput{}, err
	}
	if err := deps.save(ctx, "login.reissue_otp", acct); err != nil {
		return LoginOutput{}, err
	}
	deps.DeliverOTP(ctx, *acct, code, model.OTPVerification)
	deps.MetricInc(deps.Metrics.OTPIssued)

	token, err := deps.IssueToken(acct.ID, jwt.PurposeEmailVerification, deps.Policy.VerificationTTL)
	if err != nil {
		return LoginOutput{}, err
	}

	deps.MetricInc(deps.Metrics.LoginVerificationRequired)
	deps.EmitAudit(ctx, EventLogin, acct.ID, nil, map[string]string{"result": "verification_required"})
	return LoginOutput{AccountID: acct.ID, Token: token, VerificationRequired: true}, nil
}
