// Package registry tracks which queues exist.
package registry

import (
	"context"
	"log/slog"
	"sort"

	"mqueue-go/internal/broker"
	"mqueue-go/internal/domain"
)

// SetKey is the broker set holding every registered queue name.
const SetKey = "message_queues"

// Registry records queue names in a broker set.
// The backing list of a queue shares the queue's name as its key.
type Registry struct {
	store  broker.Broker
	logger *slog.Logger
}

// New creates a registry over store.
func New(store broker.Broker, logger *slog.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Exists reports whether name is registered.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := r.store.IsMember(ctx, SetKey, name)
	if err != nil {
		return false, &domain.BrokerError{Op: "exists", Err: err}
	}
	return ok, nil
}

// Create registers name. It returns domain.ErrQueueExists if the name is taken.
func (r *Registry) Create(ctx context.Context, name string) error {
	if err := domain.ValidateQueueName(name); err != nil {
		return err
	}

	added, err := r.store.AddMember(ctx, SetKey, name)
	if err != nil {
		return &domain.BrokerError{Op: "create", Err: err}
	}
	if !added {
		return domain.ErrQueueExists
	}

	r.logger.Info("created queue", "queue", name)
	return nil
}

// Delete unregisters name and discards its contents.
// The two broker calls are issued back to back; a push racing the delete
// may land in a list that is then purged.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if err := domain.ValidateQueueName(name); err != nil {
		return err
	}

	removed, err := r.store.RemoveMember(ctx, SetKey, name)
	if err != nil {
		return &domain.BrokerError{Op: "delete", Err: err}
	}
	if !removed {
		return domain.ErrQueueNotFound
	}

	if err := r.store.Delete(ctx, name); err != nil {
		return &domain.BrokerError{Op: "delete", Err: err}
	}

	r.logger.Info("deleted queue", "queue", name)
	return nil
}

// ListNames returns every registered queue name, sorted.
func (r *Registry) ListNames(ctx context.Context) ([]string, error) {
	names, err := r.store.Members(ctx, SetKey)
	if err != nil {
		return nil, &domain.BrokerError{Op: "list names", Err: err}
	}
	sort.Strings(names)
	return names, nil
}

// Bootstrap optionally flushes the broker and registers the reserved queues.
// Reserved queues that already exist are left untouched.
func (r *Registry) Bootstrap(ctx context.Context, reserved []string, flush bool) error {
	if flush {
		if err := r.store.Flush(ctx); err != nil {
			return &domain.BrokerError{Op: "flush", Err: err}
		}
		r.logger.Warn("flushed broker database")
	}

	for _, name := range reserved {
		added, err := r.store.AddMember(ctx, SetKey, name)
		if err != nil {
			return &domain.BrokerError{Op: "bootstrap", Err: err}
		}
		if added {
			r.logger.Info("registered reserved queue", "queue", name)
		}
	}
	return nil
}
