package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/internal/flows"
)

// Login authenticates email and password.
//
// A verified account receives a session token. An unverified account with a correct
// password receives a fresh verification code and a LoginResult with
// VerificationRequired set and an email-verification token; it never receives a
// session token. The outcome does not depend on cache availability.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricLoginLatency, time.Since(start)) }()

	out, err := flows.RunLogin(ctx, email, password, e.flowDeps)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccountID:            out.AccountID,
		Token:                out.Token,
		VerificationRequired: out.VerificationRequired,
	}, nil
}

// VerifyToken validates a session token and resolves its identity.
//
// Failures wrap ErrInvalidToken (ErrTokenExpired, ErrTokenMalformed,
// ErrTokenBadSignature). Tokens of another purpose and tokens whose account is gone
// or unverified return ErrUnauthorized. When the token has used more than
// JWT.RefreshFraction of its lifetime, TokenResult.RefreshedToken carries a new one.
func (e *Engine) VerifyToken(ctx context.Context, token string) (*TokenResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() { e.metrics.Observe(MetricVerifyTokenLatency, time.Since(start)) }()

	out, err := flows.RunVerifyToken(ctx, token, e.flowDeps)
	if err != nil {
		return nil, err
	}
	return &TokenResult{
		Identity:       out.Identity,
		RefreshedToken: out.RefreshedToken,
		ExpiresAt:      out.ExpiresAt,
	}, nil
}

// Logout evicts the cached session projection for the token's account. Tokens are
// not revoked and stay valid until they expire.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunLogout(ctx, token, e.flowDeps)
}
