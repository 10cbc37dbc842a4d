package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal/cache"
	"github.com/MrEthical07/goIdentity/internal/invalidate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/model"
)

// TokenOutput is the identity behind a session token plus an optional refreshed token.
type TokenOutput struct {
	Identity       model.Identity
	RefreshedToken string
	ExpiresAt      time.Time
}

// RunVerifyToken validates a session token and resolves its account through the
// session projection.
//
// When more than Policy.RefreshFraction of the token's lifetime has elapsed a new
// session token with the full session lifetime is returned.
func RunVerifyToken(ctx context.Context, token string, deps Deps) (TokenOutput, error) {
	normalizeDeps(&deps)
	if !deps.ready() || deps.ParseToken == nil {
		return TokenOutput{}, deps.Errors.EngineNotReady
	}

	claims, err := parseSession(token, &deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.TokenInvalid)
		return TokenOutput{}, err
	}

	identity, err := resolveIdentity(ctx, claims.Subject, &deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.TokenInvalid)
		return TokenOutput{}, err
	}

	out := TokenOutput{Identity: identity, ExpiresAt: claims.ExpiresAt.Time}
	if shouldRefresh(claims, deps.Now(), deps.Policy.RefreshFraction) {
		refreshed, err := deps.IssueToken(identity.ID, jwt.PurposeSession, deps.Policy.SessionTTL)
		if err != nil {
			return TokenOutput{}, err
		}
		out.RefreshedToken = refreshed
		out.ExpiresAt = deps.Now().Add(deps.Policy.SessionTTL)
		deps.MetricInc(deps.Metrics.TokenRefreshed)
	}

	deps.MetricInc(deps.Metrics.TokenValid)
	return out, nil
}

// RunLogout evicts the cached session projection for the token's account. The token
// itself stays valid until it expires.
func RunLogout(ctx context.Context, token string, deps Deps) error {
	normalizeDeps(&deps)
	if deps.ParseToken == nil {
		return deps.Errors.EngineNotReady
	}

	claims, err := parseSession(token, &deps)
	if err != nil {
		return err
	}

	deps.Evict(ctx, EventLogout, invalidate.SessionEnded(claims.Subject)...)
	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, EventLogout, claims.Subject, nil, nil)
	return nil
}

func parseSession(token string, deps *Deps) (*jwt.Claims, error) {
	claims, err := deps.ParseToken(token)
	if err != nil {
		return nil, mapTokenError(err, deps)
	}
	if claims.Purpose != jwt.PurposeSession {
		return nil, deps.Errors.Unauthorized
	}
	return claims, nil
}

func resolveIdentity(ctx context.Context, accountID string, deps *Deps) (model.Identity, error) {
	key := cache.SessionKey(accountID)

	var identity model.Identity
	if deps.CacheGet(ctx, key, &identity) && identity.ID == accountID && identity.Verified {
		return identity, nil
	}

	acct, err := deps.FindByID(ctx, accountID)
	if err != nil {
		mapped := deps.MapStoreError("verify_token.find", err)
		if errors.Is(mapped, deps.Errors.NotFound) {
			return model.Identity{}, deps.Errors.Unauthorized
		}
		return model.Identity{}, mapped
	}
	if !acct.Verified {
		return model.Identity{}, deps.Errors.Unauthorized
	}

	identity = model.IdentityOf(acct)
	deps.CacheSet(ctx, key, identity, deps.Policy.SessionCacheTTL)
	return identity, nil
}

func shouldRefresh(claims *jwt.Claims, now time.Time, fraction float64) bool {
	if fraction <= 0 || fraction >= 1 {
		return false
	}
	lifetime := claims.Lifetime()
	if lifetime <= 0 {
		return false
	}
	elapsed := now.Sub(claims.IssuedAt.Time)
	return float64(elapsed) > fraction*float64(lifetime)
}

func mapTokenError(err error, deps *Deps) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return deps.Errors.TokenExpired
	case errors.Is(err, jwt.ErrBadSignature):
		return deps.Errors.TokenBadSignature
	case errors.Is(err, jwt.ErrWrongPurpose):
		return deps.Errors.Unauthorized
	default:
		return deps.Errors.TokenMalformed
	}
}
