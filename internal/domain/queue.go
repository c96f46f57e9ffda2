package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Queue name length bounds, in characters.
const (
	MinQueueNameLength = 4
	MaxQueueNameLength = 20
)

// ValidateQueueName checks the naming rule shared by every queue endpoint.
func ValidateQueueName(name string) error {
	n := utf8.RuneCountInString(name)
	switch {
	case n < MinQueueNameLength:
		return nameError(IssueTooSmall, fmt.Sprintf("String must contain at least %d character(s)", MinQueueNameLength))
	case n > MaxQueueNameLength:
		return nameError(IssueTooBig, fmt.Sprintf("String must contain at most %d character(s)", MaxQueueNameLength))
	}
	return nil
}

func nameError(code, message string) *ValidationError {
	return &ValidationError{
		Kind:   ErrInvalidQueueName,
		Index:  -1,
		Issues: []Issue{{Path: "name", Code: code, Message: message}},
	}
}

// QueueNameRequest is the body of /create and /delete.
type QueueNameRequest struct {
	Name *string `json:"name"`
}

// Validate checks the request carries a well-formed queue name.
func (r *QueueNameRequest) Validate() error {
	if r.Name == nil {
		return nameError(IssueRequired, "Required")
	}
	return ValidateQueueName(*r.Name)
}

// PushRequest is the body of /push.
type PushRequest struct {
	QueueName string          `json:"queue_name"`
	Message   json.RawMessage `json:"message"`
}

// PushBatchRequest is the body of /push-n.
type PushBatchRequest struct {
	QueueName string            `json:"queue_name"`
	Messages  []json.RawMessage `json:"messages"`
}

// Validate checks the batch envelope; the messages themselves are
// validated by ParseBatch.
func (r *PushBatchRequest) Validate() error {
	if strings.TrimSpace(r.QueueName) == "" || len(r.Messages) == 0 {
		return ErrInvalidBatch
	}
	return nil
}
