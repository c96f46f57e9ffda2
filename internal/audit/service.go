// Package audit records queue lifecycle changes.
// Each create or delete is stored in the audit repository and published on
// the lifecycle event stream. Recording never fails the operation it describes.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mqueue-go/internal/domain"
	"mqueue-go/internal/events"
	"mqueue-go/internal/store"
)

// Listing bounds for List.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const recordTimeout = 5 * time.Second

// Service writes and reads the audit log.
type Service struct {
	repo      store.QueueEventRepository
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates a new audit service.
func NewService(repo store.QueueEventRepository, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// Record stores and publishes a lifecycle event. Failures are logged only.
// The write is detached from ctx so a client hanging up after a successful
// create still leaves an audit trail.
func (s *Service) Record(ctx context.Context, queue string, action domain.QueueAction, principalID, role string) *domain.QueueEvent {
	event := &domain.QueueEvent{
		ID:          uuid.New().String(),
		Queue:       queue,
		Action:      action,
		PrincipalID: principalID,
		Role:        role,
		OccurredAt:  time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.repo.Append(ctx, event); err != nil {
		s.logger.Error("failed to store queue event", "queue", queue, "action", action, "error", err)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish queue event", "queue", queue, "action", action, "error", err)
	}

	s.logger.Info("recorded queue event", "id", event.ID, "queue", queue, "action", action, "principal_id", principalID)
	return event
}

// List returns recorded events, newest first. The limit is clamped to
// [1, MaxLimit] and defaults to DefaultLimit.
func (s *Service) List(ctx context.Context, filter domain.QueueEventFilter) ([]*domain.QueueEvent, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultLimit
	case filter.Limit > MaxLimit:
		filter.Limit = MaxLimit
	}
	return s.repo.List(ctx, filter)
}
