// Package queue provides the queue service.
// It enforces existence, schema and capacity rules above the raw broker
// primitives and implements the long-polling batch pull.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"mqueue-go/internal/broker"
	"mqueue-go/internal/config"
	"mqueue-go/internal/domain"
	"mqueue-go/internal/metrics"
	"mqueue-go/internal/registry"
)

// Service implements queue-level operations over a broker.
//
// Existence and capacity checks are separate broker calls from the push that
// follows them. Concurrent pushers can exceed a queue's capacity by the number
// of racing requests, and a queue deleted between the check and the push
// receives a message that the delete then purges.
type Service struct {
	store       broker.Broker
	blocking    broker.Blocker
	registry    *registry.Registry
	maxSize     int64
	unbounded   map[string]struct{}
	pullTimeout time.Duration
	logger      *slog.Logger
}

// NewService creates a new queue service.
// store carries every non-blocking command; blocking is used only for the
// first wait of a batch pull and should not share connections with store.
func NewService(
	store broker.Broker,
	blocking broker.Blocker,
	reg *registry.Registry,
	cfg *config.QueueConfig,
	logger *slog.Logger,
) *Service {
	unbounded := make(map[string]struct{}, len(cfg.Unbounded))
	for _, name := range cfg.Unbounded {
		unbounded[name] = struct{}{}
	}

	return &Service{
		store:       store,
		blocking:    blocking,
		registry:    reg,
		maxSize:     cfg.MaxSize,
		unbounded:   unbounded,
		pullTimeout: cfg.PullTimeout,
		logger:      logger,
	}
}

// PullTimeout returns how long a batch pull waits for its first message.
func (s *Service) PullTimeout() time.Duration {
	return s.pullTimeout
}

// Push validates payload and appends it to the named queue.
// It returns the queue length after the append.
func (s *Service) Push(ctx context.Context, name string, payload json.RawMessage) (int64, error) {
	if err := s.requireQueue(ctx, name); err != nil {
		s.rejected(name, err)
		return 0, err
	}

	msg, err := domain.ParseMessage(payload)
	if err != nil {
		s.rejected(name, err)
		return 0, err
	}

	if err := s.checkCapacity(ctx, name, 1); err != nil {
		s.rejected(name, err)
		return 0, err
	}

	size, err := s.push(ctx, name, string(msg.Raw()))
	if err != nil {
		return 0, err
	}

	metrics.MessagesPushedTotal.WithLabelValues(name).Inc()
	s.logger.Debug("pushed message", "queue", name, "kind", msg.Kind, "size", size)
	return size, nil
}

// PushMany validates every payload before appending any of them.
// The batch keeps its input order: payloads[0] is pulled first.
func (s *Service) PushMany(ctx context.Context, name string, payloads []json.RawMessage) (int64, error) {
	if err := s.requireQueue(ctx, name); err != nil {
		s.rejected(name, err)
		return 0, err
	}

	msgs, err := domain.ParseBatch(payloads)
	if err != nil {
		s.rejected(name, err)
		return 0, err
	}

	if err := s.checkCapacity(ctx, name, len(msgs)); err != nil {
		s.rejected(name, err)
		return 0, err
	}

	// The broker prepends values in argument order, so the first
	// payload ends up nearest the tail and is popped first.
	values := make([]string, len(msgs))
	for i, m := range msgs {
		values[i] = string(m.Raw())
	}

	size, err := s.push(ctx, name, values...)
	if err != nil {
		return 0, err
	}

	metrics.MessagesPushedTotal.WithLabelValues(name).Add(float64(len(msgs)))
	s.logger.Debug("pushed messages", "queue", name, "count", len(msgs), "size", size)
	return size, nil
}

// Pop removes and returns the oldest message without waiting.
// It returns domain.ErrQueueEmpty when there is nothing to pop.
func (s *Service) Pop(ctx context.Context, name string) (domain.Message, error) {
	if err := domain.ValidateQueueName(name); err != nil {
		return domain.Message{}, err
	}
	if err := s.requireQueue(ctx, name); err != nil {
		return domain.Message{}, err
	}

	start := time.Now()
	raw, ok, err := s.store.Pop(ctx, name)
	s.observe("pop", start, err)
	if err != nil {
		return domain.Message{}, &domain.BrokerError{Op: "pop", Err: err}
	}
	if !ok {
		return domain.Message{}, domain.ErrQueueEmpty
	}

	msg, err := decode(raw)
	if err != nil {
		return domain.Message{}, err
	}

	metrics.MessagesPulledTotal.WithLabelValues(name, "single").Inc()
	return msg, nil
}

// PopBatch waits up to the pull timeout for a first message, then drains up
// to count-1 more without waiting, stopping as soon as the queue is empty.
// It returns domain.ErrNoMessages if nothing arrived in time.
//
// The wait runs on the blocking channel and the drain on the ordinary one, so
// the blocking connection is held only for the first message. The wait ends
// only on its own timeout; cancelling ctx does not shorten it.
func (s *Service) PopBatch(ctx context.Context, name string, count int) ([]domain.Message, error) {
	if err := domain.ValidateQueueName(name); err != nil {
		return nil, err
	}
	if count < 1 {
		count = 1
	}
	if err := s.requireQueue(ctx, name); err != nil {
		return nil, err
	}

	start := time.Now()
	first, ok, err := s.blocking.BlockingPop(context.WithoutCancel(ctx), name, s.pullTimeout)
	metrics.LongPollWait.Observe(time.Since(start).Seconds())
	if err != nil {
		s.observe("blocking_pop", start, err)
		return nil, &domain.BrokerError{Op: "blocking pop", Err: err}
	}
	if !ok {
		s.logger.Debug("long poll timed out", "queue", name, "timeout", s.pullTimeout)
		return nil, domain.ErrNoMessages
	}

	raws := []string{first}
	for len(raws) < count {
		opStart := time.Now()
		raw, ok, err := s.store.Pop(ctx, name)
		s.observe("pop", opStart, err)
		if err != nil {
			// The first message is already off the queue; hand back what we have.
			s.logger.Error("failed to drain queue", "queue", name, "collected", len(raws), "error", err)
			break
		}
		if !ok {
			break
		}
		raws = append(raws, raw)
	}

	msgs := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		msg, err := decode(raw)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	metrics.MessagesPulledTotal.WithLabelValues(name, "batch").Add(float64(len(msgs)))
	s.logger.Debug("pulled messages", "queue", name, "requested", count, "count", len(msgs))
	return msgs, nil
}

// Range returns every message in the queue, oldest first, without removing any.
func (s *Service) Range(ctx context.Context, name string) ([]domain.Message, error) {
	if err := domain.ValidateQueueName(name); err != nil {
		return nil, err
	}
	if err := s.requireQueue(ctx, name); err != nil {
		return nil, err
	}

	start := time.Now()
	raws, err := s.store.Range(ctx, name)
	s.observe("range", start, err)
	if err != nil {
		return nil, &domain.BrokerError{Op: "range", Err: err}
	}

	msgs := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		msg, err := decode(raw)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Depths returns the length of every registered queue.
func (s *Service) Depths(ctx context.Context) (map[string]int64, error) {
	names, err := s.registry.ListNames(ctx)
	if err != nil {
		return nil, err
	}

	depths := make(map[string]int64, len(names))
	for _, name := range names {
		n, err := s.length(ctx, name)
		if err != nil {
			return nil, err
		}
		depths[name] = n
	}
	return depths, nil
}

// Ping checks the broker is reachable.
func (s *Service) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.store.Ping(ctx)
	s.observe("ping", start, err)
	if err != nil {
		return &domain.BrokerError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Service) requireQueue(ctx context.Context, name string) error {
	ok, err := s.registry.Exists(ctx, name)
	if err != nil {
		metrics.BrokerErrorsTotal.WithLabelValues("exists").Inc()
		return err
	}
	if !ok {
		return domain.ErrQueueNotFound
	}
	return nil
}

func (s *Service) checkCapacity(ctx context.Context, name string, incoming int) error {
	if _, ok := s.unbounded[name]; ok {
		return nil
	}

	current, err := s.length(ctx, name)
	if err != nil {
		return err
	}
	if current+int64(incoming) > s.maxSize {
		return &domain.CapacityError{Queue: name, Current: current, Incoming: incoming, Max: s.maxSize}
	}
	return nil
}

func (s *Service) length(ctx context.Context, name string) (int64, error) {
	start := time.Now()
	n, err := s.store.Length(ctx, name)
	s.observe("length", start, err)
	if err != nil {
		return 0, &domain.BrokerError{Op: "length", Err: err}
	}
	return n, nil
}

func (s *Service) push(ctx context.Context, name string, values ...string) (int64, error) {
	start := time.Now()
	size, err := s.store.Push(ctx, name, values...)
	s.observe("push", start, err)
	if err != nil {
		return 0, &domain.BrokerError{Op: "push", Err: err}
	}
	return size, nil
}

func (s *Service) observe(op string, start time.Time, err error) {
	metrics.BrokerOperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BrokerErrorsTotal.WithLabelValues(op).Inc()
	}
}

func (s *Service) rejected(name string, err error) {
	var reason string
	switch {
	case errors.Is(err, domain.ErrQueueNotFound):
		// Unregistered names are caller input; keep them out of label values.
		name, reason = "unknown", "missing"
	case errors.Is(err, domain.ErrQueueFull):
		reason = "full"
	case errors.Is(err, domain.ErrInvalidMessage):
		reason = "invalid"
	default:
		return
	}
	metrics.PushRejectedTotal.WithLabelValues(name, reason).Inc()
}

// decode parses a stored element. Anything that no longer validates is
// reported as a malformed broker reply.
func decode(raw string) (domain.Message, error) {
	msg, err := domain.ParseMessage([]byte(raw))
	if err != nil {
		return domain.Message{}, &domain.BrokerError{Op: "decode", Err: err}
	}
	return msg, nil
}
