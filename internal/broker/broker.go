// Package broker defines the ordered-list store the queues live in.
// This abstraction allows swapping implementations (Redis, in-memory)
// without changing queue semantics.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed broker.
var ErrClosed = errors.New("broker is closed")

// Broker is the set of non-blocking list and set primitives the queues are built on.
// Lists grow at the head and are consumed from the tail, so the oldest element
// is always the next one popped.
// Implementations must be safe for concurrent use.
type Broker interface {
	// Push prepends values to the list at key, in argument order, and
	// returns the new length. Push(k, a, b) leaves b at the head.
	Push(ctx context.Context, key string, values ...string) (int64, error)

	// Pop removes and returns the oldest element of the list at key.
	// ok is false when the list is empty or missing.
	Pop(ctx context.Context, key string) (value string, ok bool, err error)

	// Length returns the number of elements in the list at key.
	Length(ctx context.Context, key string) (int64, error)

	// Range returns every element of the list at key, oldest first.
	Range(ctx context.Context, key string) ([]string, error)

	// AddMember adds member to the set at key and reports whether it was new.
	AddMember(ctx context.Context, key, member string) (bool, error)

	// RemoveMember removes member from the set at key and reports whether it was present.
	RemoveMember(ctx context.Context, key, member string) (bool, error)

	// IsMember reports whether member is in the set at key.
	IsMember(ctx context.Context, key, member string) (bool, error)

	// Members returns every member of the set at key, in no particular order.
	Members(ctx context.Context, key string) ([]string, error)

	// Delete removes key and whatever it holds.
	Delete(ctx context.Context, key string) error

	// Ping checks the broker is reachable.
	Ping(ctx context.Context) error

	// Flush removes every key.
	Flush(ctx context.Context) error

	// Close releases any resources held by the broker.
	Close() error
}

// Blocker waits for the oldest element of a list.
// It is kept apart from Broker so blocking waits can run on a channel
// that never carries ordinary traffic.
type Blocker interface {
	// BlockingPop removes and returns the oldest element of the list at key,
	// waiting up to timeout for one to arrive. ok is false on timeout.
	BlockingPop(ctx context.Context, key string, timeout time.Duration) (value string, ok bool, err error)
}
