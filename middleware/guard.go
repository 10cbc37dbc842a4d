package middleware

import (
	"context"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

// DefaultRefreshHeader carries a renewed session token when verification decided the
// presented one is due for refresh.
const DefaultRefreshHeader = "X-Refreshed-Token"

// Verifier is the part of *goIdentity.Engine the guards need.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*goIdentity.TokenResult, error)
}

type tokenResultContextKey struct{}

// TokenResultFromContext returns the verification result stored by a guard.
func TokenResultFromContext(ctx context.Context) (*goIdentity.TokenResult, bool) {
	res, ok := ctx.Value(tokenResultContextKey{}).(*goIdentity.TokenResult)
	return res, ok
}

// Option customizes [Guard].
type Option func(*guardConfig)

type guardConfig struct {
	refreshHeader string
	writeError    func(w http.ResponseWriter, r *http.Request, err error)
}

// WithRefreshHeader sets the response header for refreshed tokens. An empty name
// disables the header.
func WithRefreshHeader(name string) Option {
	return func(c *guardConfig) {
		c.refreshHeader = name
	}
}

// WithErrorWriter replaces the default JSON error response.
func WithErrorWriter(fn func(w http.ResponseWriter, r *http.Request, err error)) Option {
	return func(c *guardConfig) {
		if fn != nil {
			c.writeError = fn
		}
	}
}

// Guard verifies the bearer token of every request before calling next.
func Guard(v Verifier, opts ...Option) func(http.Handler) http.Handler {
	cfg := guardConfig{
		refreshHeader: DefaultRefreshHeader,
		writeError: func(w http.ResponseWriter, _ *http.Request, err error) {
			WriteError(w, err)
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				cfg.writeError(w, r, goIdentity.ErrEngineNotReady)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				cfg.writeError(w, r, goIdentity.ErrUnauthorized)
				return
			}

			res, err := v.VerifyToken(r.Context(), token)
			if err != nil {
				cfg.writeError(w, r, err)
				return
			}

			if res.RefreshedToken != "" && cfg.refreshHeader != "" {
				w.Header().Set(cfg.refreshHeader, res.RefreshedToken)
			}

			ctx := context.WithValue(r.Context(), tokenResultContextKey{}, res)
			ctx = goIdentity.WithIdentity(ctx, res.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
