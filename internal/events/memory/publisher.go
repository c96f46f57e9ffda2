// Package memory provides an in-memory lifecycle event publisher.
// This is useful for testing and development without external dependencies.
package memory

import (
	"context"
	"errors"
	"sync"

	"mqueue-go/internal/domain"
	"mqueue-go/internal/events"
)

// ErrPublisherClosed is returned when publishing to a closed publisher.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher keeps the most recent events in a bounded buffer.
// This implementation is safe for concurrent use.
type Publisher struct {
	mu       sync.RWMutex
	capacity int
	events   []*domain.QueueEvent
	closed   bool
}

// NewPublisher creates a publisher retaining up to capacity events.
func NewPublisher(capacity int) *Publisher {
	if capacity < 1 {
		capacity = 1
	}
	return &Publisher{capacity: capacity}
}

// Publish records a copy of event, evicting the oldest when full.
func (p *Publisher) Publish(ctx context.Context, event *domain.QueueEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	eventCopy := *event
	if len(p.events) == p.capacity {
		p.events = append(p.events[:0], p.events[1:]...)
	}
	p.events = append(p.events, &eventCopy)
	return nil
}

// Recent returns copies of the retained events, oldest first.
// Useful for testing to verify what was published.
func (p *Publisher) Recent() []*domain.QueueEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*domain.QueueEvent, len(p.events))
	for i, e := range p.events {
		eventCopy := *e
		out[i] = &eventCopy
	}
	return out
}

// Close stops accepting events.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

var _ events.Publisher = (*Publisher)(nil)
