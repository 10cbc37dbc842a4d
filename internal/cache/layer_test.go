package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type projection struct {
	ID       string `json:"id"`
	Verified bool   `json:"verified"`
}

type counters struct{ hit, miss, err int }

func (c *counters) hooks() Hooks {
	return Hooks{
		Hit:   func() { c.hit++ },
		Miss:  func() { c.miss++ },
		Error: func() { c.err++ },
	}
}

func TestLayerReadThrough(t *testing.T) {
	var c counters
	l := NewLayer(NewMemoryStore(nil), nil, c.hooks())
	ctx := context.Background()

	var got projection
	assert.False(t, l.GetJSON(ctx, ProfileKey("a"), &got))

	l.SetJSON(ctx, ProfileKey("a"), projection{ID: "a", Verified: true}, time.Hour)
	require.True(t, l.GetJSON(ctx, ProfileKey("a"), &got))
	assert.Equal(t, projection{ID: "a", Verified: true}, got)
	assert.Equal(t, counters{hit: 1, miss: 1}, c)
}

func TestLayerSwallowsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := NewMemoryStore(nil)
	var c counters
	l := NewLayer(store, zap.New(core), c.hooks())
	ctx := context.Background()

	store.FailOperations(true)
	var got projection
	assert.False(t, l.GetJSON(ctx, "k", &got))
	l.SetJSON(ctx, "k", projection{ID: "x"}, time.Minute)

	assert.Equal(t, 2, c.err)
	assert.Equal(t, 2, logs.Len())

	store.FailOperations(false)
	store.SetAvailable(false)
	calls := store.Calls()
	assert.False(t, l.GetJSON(ctx, "k", &got))
	l.SetJSON(ctx, "k", projection{ID: "x"}, time.Minute)
	assert.Equal(t, calls, store.Calls(), "unavailable store must not be called")
}

func TestLayerEvictsUndecodable(t *testing.T) {
	store := NewMemoryStore(nil)
	l := NewLayer(store, nil, Hooks{})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("not-json"), time.Minute))
	var got projection
	assert.False(t, l.GetJSON(ctx, "k", &got))
	assert.Equal(t, 0, store.Len())
}

func TestLayerDisabled(t *testing.T) {
	l := NewLayer(nil, nil, Hooks{})
	ctx := context.Background()

	assert.False(t, l.Enabled())
	var got projection
	assert.False(t, l.GetJSON(ctx, "k", &got))
	l.SetJSON(ctx, "k", got, time.Minute)
	assert.NoError(t, l.Delete(ctx, "k"))
	n, err := l.DeletePrefix(ctx, "k")
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestLayerDeletePrefix(t *testing.T) {
	store := NewMemoryStore(nil)
	l := NewLayer(store, nil, Hooks{})
	ctx := context.Background()

	l.SetJSON(ctx, SearchKey("v", "Go", 1, 10), []int{1}, time.Minute)
	l.SetJSON(ctx, SuggestKey("v", 5), []int{1}, time.Minute)
	l.SetJSON(ctx, SearchKey("w", "go", 1, 10), []int{1}, time.Minute)

	n, err := l.DeletePrefix(ctx, SearchPrefix("v"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, store.Len())
}
