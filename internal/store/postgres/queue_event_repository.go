package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mqueue-go/internal/domain"
	"mqueue-go/internal/metrics"
)

// QueueEventRepository implements store.QueueEventRepository using PostgreSQL.
type QueueEventRepository struct {
	db *DB
}

// NewQueueEventRepository creates a new PostgreSQL-backed audit repository.
func NewQueueEventRepository(db *DB) *QueueEventRepository {
	return &QueueEventRepository{db: db}
}

// Append stores a new event.
func (r *QueueEventRepository) Append(ctx context.Context, event *domain.QueueEvent) error {
	start := time.Now()
	defer func() {
		metrics.StorageOperationLatency.WithLabelValues("postgres", "write").Observe(time.Since(start).Seconds())
	}()

	query := `
		INSERT INTO queue_events (id, queue, action, principal_id, role, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.pool.Exec(ctx, query,
		event.ID,
		event.Queue,
		event.Action,
		nullableString(event.PrincipalID),
		nullableString(event.Role),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append queue event: %w", err)
	}

	return nil
}

// List retrieves events matching the filter, newest first.
func (r *QueueEventRepository) List(ctx context.Context, filter domain.QueueEventFilter) ([]*domain.QueueEvent, error) {
	start := time.Now()
	defer func() {
		metrics.StorageOperationLatency.WithLabelValues("postgres", "read").Observe(time.Since(start).Seconds())
	}()

	query := `
		SELECT id, queue, action, principal_id, role, occurred_at
		FROM queue_events
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argNum)
		args = append(args, filter.Queue)
		argNum++
	}

	query += " ORDER BY occurred_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue events: %w", err)
	}
	defer rows.Close()

	return scanQueueEvents(rows)
}

// scanQueueEvents scans multiple rows into a slice of QueueEvents.
func scanQueueEvents(rows pgx.Rows) ([]*domain.QueueEvent, error) {
	events := make([]*domain.QueueEvent, 0)

	for rows.Next() {
		var event domain.QueueEvent
		var principalID, role *string

		err := rows.Scan(
			&event.ID,
			&event.Queue,
			&event.Action,
			&principalID,
			&role,
			&event.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue event: %w", err)
		}

		if principalID != nil {
			event.PrincipalID = *principalID
		}
		if role != nil {
			event.Role = *role
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue events: %w", err)
	}

	return events, nil
}

// nullableString returns nil if the string is empty, otherwise returns a pointer to it.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
