package tokenstore

import (
	"context"
	"sync"
	"time"
)

// Backend is the raw key/value storage behind a Store. A zero ttl means the
// slot never expires. Take reads and deletes a slot in one step so a value can
// be consumed at most once.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Take(ctx context.Context, key string) ([]byte, bool, error)

	// Sweep removes expired slots and reports how many were dropped.
	Sweep(ctx context.Context) (int, error)

	Close() error
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Backend. Contents are lost when the process exits.
type Memory struct {
	mu    sync.Mutex
	slots map[string]memEntry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.slots[key]
	if !ok || e.expired(m.now()) {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.slots[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.slots, key)
	return nil
}

func (m *Memory) Take(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.slots[key]
	if !ok {
		return nil, false, nil
	}
	delete(m.slots, key)
	if e.expired(m.now()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, e := range m.slots {
		if e.expired(now) {
			delete(m.slots, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
