package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store.
//
// SetAvailable and FailOperations inject faults: an unavailable store reports
// Available()==false, and a failing store returns ErrUnavailable from every call
// while still claiming to be available.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time

	unavailable atomic.Bool
	failing     atomic.Bool
	calls       atomic.Uint64
}

// NewMemoryStore returns an empty store. now may be nil.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   now,
	}
}

var errInjected = errors.New("injected cache failure")

func (m *MemoryStore) check() error {
	m.calls.Add(1)
	if m.unavailable.Load() || m.failing.Load() {
		return errors.Join(ErrUnavailable, errInjected)
	}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := m.check(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return nil, false, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

// Set implements Store. A non-positive ttl keeps the entry until deleted.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.check(); err != nil {
		return err
	}
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = item
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	if err := m.check(); err != nil {
		return err
	}
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
	}
	m.mu.Unlock()
	return nil
}

// Keys implements Store. Results are sorted.
func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	g, err := glob.Compile(glob.QuoteMeta(prefix) + "*")
	if err != nil {
		return nil, err
	}

	now := m.now()
	m.mu.Lock()
	out := make([]string, 0, len(m.items))
	for k, item := range m.items {
		if !item.expiresAt.IsZero() && !now.Before(item.expiresAt) {
			continue
		}
		if g.Match(k) {
			out = append(out, k)
		}
	}
	m.mu.Unlock()

	sort.Strings(out)
	return out, nil
}

// Available implements Store.
func (m *MemoryStore) Available() bool {
	return !m.unavailable.Load()
}

// SetAvailable toggles the availability flag.
func (m *MemoryStore) SetAvailable(ok bool) {
	m.unavailable.Store(!ok)
}

// FailOperations makes every call fail while Available keeps reporting true.
func (m *MemoryStore) FailOperations(fail bool) {
	m.failing.Store(fail)
}

// Calls returns the number of operations attempted, including failed ones.
func (m *MemoryStore) Calls() uint64 {
	return m.calls.Load()
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
