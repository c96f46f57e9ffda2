package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the registry, the queue service and the HTTP layer.
var (
	ErrQueueNotFound    = errors.New("queue does not exist")
	ErrQueueExists      = errors.New("queue already exists")
	ErrQueueFull        = errors.New("queue is full")
	ErrQueueEmpty       = errors.New("no messages in the queue")
	ErrNoMessages       = errors.New("no messages available within timeout")
	ErrInvalidQueueName = errors.New("invalid message queue name format")
	ErrInvalidMessage   = errors.New("invalid message format")
	ErrInvalidBatch     = errors.New("request must include 'queue_name' (string) and 'messages' (non-empty array)")
)

// Issue codes reported by validation.
const (
	IssueRequired     = "required"
	IssueInvalidType  = "invalid_type"
	IssueTooSmall     = "too_small"
	IssueTooBig       = "too_big"
	IssueInvalidEnum  = "invalid_enum_value"
	IssueInvalidDate  = "invalid_date"
	IssueInvalidValue = "invalid_literal"
)

// Issue describes a single field that failed validation.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError is returned when a payload or queue name fails validation.
// Index is the position of the offending message in a batch, or -1.
type ValidationError struct {
	Kind   error
	Index  int
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Path+": "+is.Message)
	}
	prefix := e.Kind.Error()
	if e.Index >= 0 {
		prefix = fmt.Sprintf("%s for message at index %d", prefix, e.Index)
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// AtIndex returns a copy of the error attributed to batch position i.
func (e *ValidationError) AtIndex(i int) *ValidationError {
	cp := *e
	cp.Index = i
	return &cp
}

// CapacityError is returned when a push would exceed a queue's capacity.
type CapacityError struct {
	Queue    string
	Current  int64
	Incoming int
	Max      int64
}

func (e *CapacityError) Error() string {
	if e.Incoming > 1 {
		return fmt.Sprintf("queue %s does not have enough space for %d new messages. Current size: %d, Max size: %d.",
			e.Queue, e.Incoming, e.Current, e.Max)
	}
	return fmt.Sprintf("queue %s is full", e.Queue)
}

func (e *CapacityError) Unwrap() error {
	return ErrQueueFull
}

// BrokerError wraps a failure talking to the broker or a malformed broker reply.
type BrokerError struct {
	Op  string
	Err error
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// IsBrokerError reports whether err originated from the broker.
func IsBrokerError(err error) bool {
	var be *BrokerError
	return errors.As(err, &be)
}
