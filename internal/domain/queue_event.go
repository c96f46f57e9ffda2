package domain

import "time"

// QueueAction is a queue lifecycle transition recorded in the audit log.
type QueueAction string

const (
	QueueCreated QueueAction = "queue.created"
	QueueDeleted QueueAction = "queue.deleted"
)

// QueueEvent records who created or deleted a queue, and when.
type QueueEvent struct {
	ID          string      `json:"id"`
	Queue       string      `json:"queue"`
	Action      QueueAction `json:"action"`
	PrincipalID string      `json:"principal_id,omitempty"`
	Role        string      `json:"role,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// QueueEventFilter narrows an audit log listing.
type QueueEventFilter struct {
	Queue string
	Limit int
}
