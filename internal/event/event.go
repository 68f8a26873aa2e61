// Package event defines the cross-service event contracts and their codec.
//
// Payloads are versioned JSON documents: a consumer decodes them through the
// registry by type tag alone, without sharing producer code.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type tags stored in outbox/inbox rows and used as broker topics.
const (
	TypePaymentTask   = "PaymentTaskEvent"
	TypePaymentResult = "PaymentResultEvent"
)

// Broker topics carrying each event kind.
const (
	TopicPaymentTask   = "payment-task"
	TopicPaymentResult = "payment-result"
)

// Topic maps a type tag to its broker topic. The second return is false for
// tags outside the known event kinds.
func Topic(eventType string) (string, bool) {
	switch eventType {
	case TypePaymentTask:
		return TopicPaymentTask, true
	case TypePaymentResult:
		return TopicPaymentResult, true
	default:
		return "", false
	}
}

// Event is the tagged union over the known event kinds.
type Event interface {
	// EventType returns the type tag written to outbox/inbox rows.
	EventType() string
	// DedupKey returns the stable logical identity used for inbox
	// deduplication. It is derived from domain fields, never from a
	// transport-assigned message id.
	DedupKey() string
}

// PaymentTaskEvent asks the payment service to charge a user for an order.
type PaymentTaskEvent struct {
	OrderID uuid.UUID       `json:"orderId"`
	UserID  uuid.UUID       `json:"userId"`
	Amount  decimal.Decimal `json:"amount"`
}

func (PaymentTaskEvent) EventType() string { return TypePaymentTask }

func (e PaymentTaskEvent) DedupKey() string {
	return TypePaymentTask + ":" + e.OrderID.String()
}

// PaymentResultEvent reports the outcome of a payment task.
type PaymentResultEvent struct {
	OrderID uuid.UUID `json:"orderId"`
	Success bool      `json:"success"`
	Reason  string    `json:"reason,omitempty"`
}

func (PaymentResultEvent) EventType() string { return TypePaymentResult }

func (e PaymentResultEvent) DedupKey() string {
	return TypePaymentResult + ":" + e.OrderID.String()
}

// ErrUnknownType reports a type tag with no registered decoder.
type ErrUnknownType struct {
	Type string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

var decoders = map[string]func([]byte) (Event, error){
	TypePaymentTask: func(b []byte) (Event, error) {
		var e PaymentTaskEvent
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", TypePaymentTask, err)
		}
		return e, nil
	},
	TypePaymentResult: func(b []byte) (Event, error) {
		var e PaymentResultEvent
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", TypePaymentResult, err)
		}
		return e, nil
	},
}

// Encode serializes an event into the payload stored in an outbox row.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return payload, nil
}

// Decode resolves the type tag through the registry and decodes the payload.
// An unregistered tag yields *ErrUnknownType rather than a silent fallthrough.
func Decode(eventType string, payload []byte) (Event, error) {
	decode, ok := decoders[eventType]
	if !ok {
		return nil, &ErrUnknownType{Type: eventType}
	}
	return decode(payload)
}
