// Package memory provides an in-memory implementation of the broker interfaces.
// This is useful for testing and development without external dependencies.
package memory

import (
	"context"
	"sync"
	"time"

	"mqueue-go/internal/broker"
)

// Broker is an in-process ordered-list store.
// It implements both broker.Broker and broker.Blocker and is safe for concurrent use.
type Broker struct {
	mu     sync.Mutex
	lists  map[string][]string // oldest first
	sets   map[string]map[string]struct{}
	closed bool

	// notifyCh is closed and replaced on every push to wake blocked poppers.
	notifyCh chan struct{}
}

// New creates an empty in-memory broker.
func New() *Broker {
	return &Broker{
		lists:    make(map[string][]string),
		sets:     make(map[string]map[string]struct{}),
		notifyCh: make(chan struct{}),
	}
}

// Push prepends values to the list at key.
func (b *Broker) Push(_ context.Context, key string, values ...string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, broker.ErrClosed
	}

	b.lists[key] = append(b.lists[key], values...)

	close(b.notifyCh)
	b.notifyCh = make(chan struct{})

	return int64(len(b.lists[key])), nil
}

// Pop removes and returns the oldest element of the list at key.
func (b *Broker) Pop(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", false, broker.ErrClosed
	}
	v, ok := b.popLocked(key)
	return v, ok, nil
}

func (b *Broker) popLocked(key string) (string, bool) {
	list := b.lists[key]
	if len(list) == 0 {
		return "", false
	}
	v := list[0]
	if len(list) == 1 {
		delete(b.lists, key)
	} else {
		b.lists[key] = list[1:]
	}
	return v, true
}

// BlockingPop waits up to timeout for an element of the list at key.
func (b *Broker) BlockingPop(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return "", false, broker.ErrClosed
		}
		if v, ok := b.popLocked(key); ok {
			b.mu.Unlock()
			return v, true, nil
		}
		ch := b.notifyCh
		b.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return "", false, nil
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
}

// Length returns the number of elements in the list at key.
func (b *Broker) Length(_ context.Context, key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, broker.ErrClosed
	}
	return int64(len(b.lists[key])), nil
}

// Range returns a copy of the list at key, oldest first.
func (b *Broker) Range(_ context.Context, key string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, broker.ErrClosed
	}
	out := make([]string, len(b.lists[key]))
	copy(out, b.lists[key])
	return out, nil
}

// AddMember adds member to the set at key.
func (b *Broker) AddMember(_ context.Context, key, member string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, broker.ErrClosed
	}
	set, ok := b.sets[key]
	if !ok {
		set = make(map[string]struct{})
		b.sets[key] = set
	}
	if _, exists := set[member]; exists {
		return false, nil
	}
	set[member] = struct{}{}
	return true, nil
}

// RemoveMember removes member from the set at key.
func (b *Broker) RemoveMember(_ context.Context, key, member string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, broker.ErrClosed
	}
	set := b.sets[key]
	if _, exists := set[member]; !exists {
		return false, nil
	}
	delete(set, member)
	if len(set) == 0 {
		delete(b.sets, key)
	}
	return true, nil
}

// IsMember reports whether member is in the set at key.
func (b *Broker) IsMember(_ context.Context, key, member string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, broker.ErrClosed
	}
	_, ok := b.sets[key][member]
	return ok, nil
}

// Members returns every member of the set at key.
func (b *Broker) Members(_ context.Context, key string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, broker.ErrClosed
	}
	out := make([]string, 0, len(b.sets[key]))
	for m := range b.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

// Delete removes key.
func (b *Broker) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return broker.ErrClosed
	}
	delete(b.lists, key)
	delete(b.sets, key)
	return nil
}

// Ping reports ErrClosed once the broker is closed.
func (b *Broker) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return broker.ErrClosed
	}
	return nil
}

// Flush removes every key.
func (b *Broker) Flush(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return broker.ErrClosed
	}
	b.lists = make(map[string][]string)
	b.sets = make(map[string]map[string]struct{})
	return nil
}

// Close marks the broker closed and wakes every blocked popper.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.notifyCh)
	b.notifyCh = make(chan struct{})
	return nil
}

var (
	_ broker.Broker  = (*Broker)(nil)
	_ broker.Blocker = (*Broker)(nil)
)
