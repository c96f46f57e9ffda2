// Package events defines the stream queue lifecycle events are published on.
// This abstraction allows swapping implementations (Kafka, in-memory)
// without changing the audit service.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"mqueue-go/internal/domain"
)

// Publisher sends lifecycle events to downstream consumers.
// Implementations must be safe for concurrent use.
type Publisher interface {
	// Publish sends an event. Events for the same queue keep their order.
	Publish(ctx context.Context, event *domain.QueueEvent) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Encode renders event as its wire form: the queue name as the partition
// key and the JSON event as the value.
func Encode(event *domain.QueueEvent) (key, value []byte, err error) {
	value, err = json.Marshal(event)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode queue event: %w", err)
	}
	return []byte(event.Queue), value, nil
}
