// Package domain contains the core types of the message queue: the two
// message variants and their schema validation, queue naming rules,
// lifecycle audit events and the error taxonomy.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageKind discriminates the two message variants.
type MessageKind string

const (
	// KindTransaction marks a payment transaction awaiting fraud analysis.
	KindTransaction MessageKind = "transaction"
	// KindResult marks a fraud analysis result for a transaction.
	KindResult MessageKind = "result"
)

// discriminatorField selects the Result variant when present.
const discriminatorField = "is_fraudulent"

// TransactionStatus is the processing status of a transaction.
type TransactionStatus string

const (
	StatusAccepted TransactionStatus = "accepted"
	StatusRejected TransactionStatus = "rejected"
	StatusPending  TransactionStatus = "pending"
)

// IsValid returns true if the status is a known valid value.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusPending:
		return true
	default:
		return false
	}
}

// Transaction is a payment transaction.
type Transaction struct {
	ID         int64             `json:"id"`
	CustomerID int64             `json:"customer_id"`
	VendorID   int64             `json:"vendor_id"`
	Timestamp  string            `json:"timestamp"`
	Status     TransactionStatus `json:"status"`
	Amount     float64           `json:"amount"`
}

// Result is the outcome of fraud analysis for one transaction.
type Result struct {
	ID            int64   `json:"id"`
	TransactionID int64   `json:"transaction_id"`
	Timestamp     string  `json:"timestamp"`
	IsFraudulent  int     `json:"is_fraudulent"`
	Confidence    float64 `json:"confidence"`
}

// Message is a validated queue payload.
// Exactly one of Transaction or Result is set, as indicated by Kind.
// The original encoding is kept so a pulled message is byte-for-byte
// what was pushed, modulo insignificant whitespace.
type Message struct {
	Kind        MessageKind
	Transaction *Transaction
	Result      *Result

	raw json.RawMessage
}

// NewTransactionMessage validates t and wraps it in a Message.
func NewTransactionMessage(t Transaction) (Message, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return Message{}, err
	}
	return ParseMessage(data)
}

// NewResultMessage validates r and wraps it in a Message.
func NewResultMessage(r Result) (Message, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Message{}, err
	}
	return ParseMessage(data)
}

// Raw returns the compact JSON encoding stored in the broker.
func (m Message) Raw() json.RawMessage {
	if len(m.raw) > 0 {
		return m.raw
	}
	data, _ := m.MarshalJSON()
	return data
}

// MarshalJSON encodes the message as the plain variant object.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	switch m.Kind {
	case KindTransaction:
		return json.Marshal(m.Transaction)
	case KindResult:
		return json.Marshal(m.Result)
	default:
		return nil, fmt.Errorf("unknown message kind %q", m.Kind)
	}
}

// UnmarshalJSON classifies and validates data.
func (m *Message) UnmarshalJSON(data []byte) error {
	msg, err := ParseMessage(data)
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

// ParseMessage classifies payload and validates it against its variant's schema.
// A payload with an is_fraudulent key is a Result; anything else is checked as a Transaction.
// On failure the returned error is a *ValidationError listing every failing field.
func ParseMessage(payload []byte) (Message, error) {
	trimmed := bytes.TrimSpace(payload)
	var raw map[string]json.RawMessage
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &raw) != nil {
		return Message{}, &ValidationError{
			Kind:   ErrInvalidMessage,
			Index:  -1,
			Issues: []Issue{{Code: IssueInvalidType, Message: "Message must be an object."}},
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Message{}, fmt.Errorf("compact message: %w", err)
	}

	f := &fields{raw: raw}
	msg := Message{raw: compact.Bytes()}

	if _, ok := raw[discriminatorField]; ok {
		msg.Kind = KindResult
		msg.Result = &Result{
			ID:            f.integer("id", 1),
			TransactionID: f.integer("transaction_id", 1),
			Timestamp:     f.timestamp("timestamp"),
			IsFraudulent:  f.flag(discriminatorField),
			Confidence:    f.between("confidence", 0, 1),
		}
	} else {
		msg.Kind = KindTransaction
		msg.Transaction = &Transaction{
			ID:         f.integer("id", 1),
			CustomerID: f.integer("customer_id", 1),
			VendorID:   f.integer("vendor_id", 1),
			Timestamp:  f.timestamp("timestamp"),
			Status:     TransactionStatus(f.enum("status", string(StatusAccepted), string(StatusRejected), string(StatusPending))),
			Amount:     f.atLeast("amount", 0),
		}
	}

	if len(f.issues) > 0 {
		return Message{}, &ValidationError{Kind: ErrInvalidMessage, Index: -1, Issues: f.issues}
	}
	return msg, nil
}

// ParseBatch validates every payload before returning any message.
// The first failing payload is reported with its index.
func ParseBatch(payloads []json.RawMessage) ([]Message, error) {
	out := make([]Message, 0, len(payloads))
	for i, p := range payloads {
		msg, err := ParseMessage(p)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return nil, verr.AtIndex(i)
			}
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// timestampLayouts are the date-time shapes accepted for the timestamp field.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
