package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestMemoryStoreTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemoryStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "profile:a", []byte(`{}`), time.Minute))
	_, found, err := m.Get(ctx, "profile:a")
	require.NoError(t, err)
	assert.True(t, found)

	clock.now = clock.now.Add(time.Minute)
	_, found, err = m.Get(ctx, "profile:a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreKeysPrefix(t *testing.T) {
	m := NewMemoryStore(nil)
	ctx := context.Background()

	for _, k := range []string{
		UserPostsKey("a", 1, 10),
		UserPostsKey("a", 2, 10),
		UserPostsKey("ab", 1, 10),
		FeedKey(1, 10),
		"search:[x]*:q:go",
	} {
		require.NoError(t, m.Set(ctx, k, []byte("1"), time.Hour))
	}

	keys, err := m.Keys(ctx, UserPostsPrefix("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"userPosts:a:page:1:limit:10", "userPosts:a:page:2:limit:10"}, keys)

	keys, err = m.Keys(ctx, "search:[x]*:")
	require.NoError(t, err)
	assert.Equal(t, []string{"search:[x]*:q:go"}, keys)
}

func TestMemoryStoreFaultInjection(t *testing.T) {
	m := NewMemoryStore(nil)
	ctx := context.Background()

	m.FailOperations(true)
	assert.True(t, m.Available())
	_, _, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	m.FailOperations(false)
	m.SetAvailable(false)
	assert.False(t, m.Available())
	assert.ErrorIs(t, m.Set(ctx, "k", nil, 0), ErrUnavailable)
}
