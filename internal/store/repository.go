// Package store defines persistence interfaces for the queue lifecycle audit log.
package store

import (
	"context"

	"mqueue-go/internal/domain"
)

// QueueEventRepository defines the interface for audit log storage.
// This is typically backed by PostgreSQL for production use.
type QueueEventRepository interface {
	// Append stores a new event.
	Append(ctx context.Context, event *domain.QueueEvent) error

	// List retrieves events matching the filter, newest first.
	List(ctx context.Context, filter domain.QueueEventFilter) ([]*domain.QueueEvent, error)
}
