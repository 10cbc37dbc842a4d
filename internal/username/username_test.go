package username

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_.]+$`)

func seededIntn(seed int64) Intn {
	r := rand.New(rand.NewSource(seed))
	return func(n int) (int, error) { return r.Intn(n), nil }
}

func takenSet(names ...string) Taken {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(_ context.Context, c string) (bool, error) { return set[c], nil }
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Jane Doe":          "jane_doe",
		"  Jane   Q  Doe  ": "jane_q_doe",
		"José!":             "jos",
		"!!!":               "user",
		"":                  "user",
		"a.b_c":             "a.b_c",
		"_lead.":            "lead",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
	assert.LessOrEqual(t, len(Normalize(strings.Repeat("x", 100))), maxBaseLen)
}

func TestGenerateBaseFirst(t *testing.T) {
	g := New(takenSet(), seededIntn(1), 10)
	got, err := g.Generate(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "jane_doe", got)
}

func TestGenerateSkipsTaken(t *testing.T) {
	g := New(takenSet("jane_doe"), seededIntn(1), 10)
	got, err := g.Generate(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.NotEqual(t, "jane_doe", got)
	assert.Regexp(t, `^jane_doe[_.]\d{1,3}$`, got)
}

func TestGenerateExhausted(t *testing.T) {
	calls := 0
	always := func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}
	g := New(always, seededIntn(1), 10)
	_, err := g.Generate(context.Background(), "Jane")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 10, calls)
}

func TestGeneratePropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	g := New(func(context.Context, string) (bool, error) { return false, boom }, seededIntn(1), 10)
	_, err := g.Generate(context.Background(), "Jane")
	assert.ErrorIs(t, err, boom)
}

func TestGeneratedHandlesAreWellFormed(t *testing.T) {
	names := []string{"Jane Doe", "ÅSA", "x", "  ", "Mr. Smith-Jones", "12345"}
	for seed := int64(0); seed < 50; seed++ {
		g := New(takenSet(Normalize(names[seed%int64(len(names))])), seededIntn(seed), 10)
		got, err := g.Generate(context.Background(), names[seed%int64(len(names))])
		require.NoError(t, err)
		assert.Regexp(t, handlePattern, got)
	}
}

func TestSuggest(t *testing.T) {
	g := New(takenSet("jane"), seededIntn(7), 10)
	got, err := g.Suggest(context.Background(), "jane", 3, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	seen := map[string]bool{}
	for _, s := range got {
		assert.False(t, seen[s], "duplicate suggestion %q", s)
		seen[s] = true
		assert.NotEqual(t, "jane", s)
		assert.True(t, strings.HasPrefix(s, "jane"))
	}
}

func TestSuggestExhausted(t *testing.T) {
	g := New(func(context.Context, string) (bool, error) { return true, nil }, seededIntn(7), 10)
	got, err := g.Suggest(context.Background(), "jane", 3, 10)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, got)
}
