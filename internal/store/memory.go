package store

import (
	"bytes"
	"context"
	"sync"
)

// Bus is an in-memory shared store. Each Open returns a separate handle,
// standing in for one process, so writes through one handle notify the
// subscribers of every other handle. Notifications are delivered
// synchronously before Write returns.
type Bus struct {
	mu     sync.Mutex
	values map[string][]byte
	subs   map[string][]*subscription
	nextID int
}

type subscription struct {
	owner int
	fn    func([]byte)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		values: make(map[string][]byte),
		subs:   make(map[string][]*subscription),
	}
}

// Open returns a new handle onto the bus.
func (b *Bus) Open() *MemoryStore {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return &MemoryStore{bus: b, id: b.nextID}
}

// Snapshot returns a copy of every key currently set.
func (b *Bus) Snapshot() map[string][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string][]byte, len(b.values))
	for k, v := range b.values {
		out[k] = bytes.Clone(v)
	}
	return out
}

// set stores value (nil deletes) and returns the subscriptions to notify.
func (b *Bus) set(owner int, key string, value []byte) []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if value == nil {
		delete(b.values, key)
	} else {
		b.values[key] = bytes.Clone(value)
	}
	var notify []*subscription
	for _, s := range b.subs[key] {
		if s.owner != owner {
			notify = append(notify, s)
		}
	}
	return notify
}

// MemoryStore is one handle onto a Bus.
type MemoryStore struct {
	bus *Bus
	id  int

	mu     sync.Mutex
	closed bool
	owned  []func()
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MemoryStore) Read(ctx context.Context, key string) ([]byte, error) {
	if m.isClosed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	v, ok := m.bus.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *MemoryStore) Write(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return m.put(ctx, key, value)
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	return m.put(ctx, key, nil)
}

func (m *MemoryStore) put(ctx context.Context, key string, value []byte) error {
	if m.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, s := range m.bus.set(m.id, key, value) {
		s.fn(bytes.Clone(value))
	}
	return nil
}

func (m *MemoryStore) Subscribe(key string, fn func(value []byte)) func() {
	sub := &subscription{owner: m.id, fn: fn}
	m.bus.mu.Lock()
	m.bus.subs[key] = append(m.bus.subs[key], sub)
	m.bus.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.bus.mu.Lock()
			defer m.bus.mu.Unlock()
			list := m.bus.subs[key]
			for i, s := range list {
				if s == sub {
					m.bus.subs[key] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}

	m.mu.Lock()
	m.owned = append(m.owned, cancel)
	m.mu.Unlock()
	return cancel
}

// Close cancels every subscription made through this handle.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	owned := m.owned
	m.owned = nil
	m.mu.Unlock()

	for _, cancel := range owned {
		cancel()
	}
	return nil
}
