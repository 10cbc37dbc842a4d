// Package username derives unique handles from display names.
package username

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"
)

const (
	fallbackBase = "user"
	maxBaseLen   = 24
	suffixRange  = 1000
)

// ErrExhausted is returned when no free candidate was found within the probe budget.
var ErrExhausted = errors.New("username candidates exhausted")

// Taken reports whether a candidate is already in use.
type Taken func(ctx context.Context, candidate string) (bool, error)

// Intn returns a uniform value in [0, n).
type Intn func(n int) (int, error)

// Generator probes candidates against a Taken check.
type Generator struct {
	taken       Taken
	intn        Intn
	maxAttempts int
}

// New returns a Generator. maxAttempts <= 0 selects 10.
func New(taken Taken, intn Intn, maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Generator{taken: taken, intn: intn, maxAttempts: maxAttempts}
}

// Normalize lowercases name, joins whitespace runs with '_' and drops characters
// outside [a-z0-9_.]. An empty result becomes "user".
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.TrimSpace(strings.ToLower(name)) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = true
			continue
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '.':
		default:
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
		if b.Len() >= maxBaseLen {
			break
		}
	}

	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return fallbackBase
	}
	return out
}

// Valid reports whether u is already in normalized form.
func Valid(u string) bool {
	return u != "" && len(u) <= maxBaseLen+4 && Normalize(u) == u
}

// Generate returns the first free candidate: the normalized base itself, then
// base + ('_' | '.') + n with n in [0, 1000).
func (g *Generator) Generate(ctx context.Context, name string) (string, error) {
	base := Normalize(name)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			var err error
			candidate, err = g.candidate(base)
			if err != nil {
				return "", err
			}
		}
		taken, err := g.taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// Suggest returns up to want distinct free candidates derived from attempted,
// probing at most maxProbes times. Fewer than want results yields ErrExhausted
// along with what was found.
func (g *Generator) Suggest(ctx context.Context, attempted string, want, maxProbes int) ([]string, error) {
	base := Normalize(attempted)
	seen := map[string]struct{}{base: {}}
	out := make([]string, 0, want)

	for probe := 0; probe < maxProbes && len(out) < want; probe++ {
		candidate, err := g.candidate(base)
		if err != nil {
			return out, err
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}

		taken, err := g.taken(ctx, candidate)
		if err != nil {
			return out, err
		}
		if !taken {
			out = append(out, candidate)
		}
	}
	if len(out) < want {
		return out, ErrExhausted
	}
	return out, nil
}

func (g *Generator) candidate(base string) (string, error) {
	sepPick, err := g.intn(2)
	if err != nil {
		return "", err
	}
	n, err := g.intn(suffixRange)
	if err != nil {
		return "", err
	}
	sep := "_"
	if sepPick == 1 {
		sep = "."
	}
	return base + sep + strconv.Itoa(n), nil
}
