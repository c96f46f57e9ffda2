// Package memory provides an in-memory implementation of the store interfaces.
// This is useful for testing and development without external dependencies.
package memory

import (
	"context"
	"sync"

	"mqueue-go/internal/domain"
)

// QueueEventRepository is an in-memory implementation of store.QueueEventRepository.
// Events are kept in append order.
type QueueEventRepository struct {
	mu     sync.RWMutex
	events []*domain.QueueEvent
}

// NewQueueEventRepository creates a new in-memory audit repository.
func NewQueueEventRepository() *QueueEventRepository {
	return &QueueEventRepository{}
}

// Append stores a copy of event.
func (r *QueueEventRepository) Append(ctx context.Context, event *domain.QueueEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to prevent external modification
	eventCopy := *event
	r.events = append(r.events, &eventCopy)
	return nil
}

// List returns copies of matching events, newest first.
func (r *QueueEventRepository) List(ctx context.Context, filter domain.QueueEventFilter) ([]*domain.QueueEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.QueueEvent, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if filter.Queue != "" && e.Queue != filter.Queue {
			continue
		}
		eventCopy := *e
		result = append(result, &eventCopy)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}
