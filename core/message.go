package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the payload schema of a Message and selects the handler
// that processes it.
type Kind string

// Wire-level message kind vocabulary. These exact strings are the contract
// shared across implementations and transports; do not change them.
const (
	KindServiceRequest     Kind = "service_request"
	KindPaymentRequired    Kind = "payment_required"
	KindServiceDelivered   Kind = "service_delivered"
	KindPaymentInvalid     Kind = "payment_invalid"
	KindPurchaseDeclined   Kind = "purchase_declined"
	KindServiceUnavailable Kind = "service_unavailable"
)

// Payload field names shared across message kinds.
const (
	FieldService      = "service"
	FieldQuantity     = "quantity"
	FieldPaymentProof = "paymentProof"
	FieldPrice        = "price"
	FieldRecipient    = "recipient"
	FieldMessage      = "message"
	FieldStatus       = "status"
	FieldError        = "error"
	FieldReason       = "reason"
	FieldAvailable    = "available"
	FieldRemaining    = "remaining"
)

// Message is the unit of communication between agents. After construction it
// must be treated as immutable; responses always carry a fresh ID with sender
// and recipient swapped relative to the triggering message (see Reply).
//
// Payload is a kind-dependent key/value mapping. Timestamp is informative
// only; routing order is defined by enqueue order, never by timestamps.
type Message struct {
	ID          string         `json:"id"`
	SenderID    string         `json:"sender_id"`
	RecipientID string         `json:"recipient_id"`
	Kind        Kind           `json:"kind"`
	Payload     map[string]any `json:"payload,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewMessage constructs a message with a fresh unique ID and a UTC timestamp.
func NewMessage(senderID, recipientID string, kind Kind, payload map[string]any) Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return Message{
		ID:          NewID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Kind:        kind,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}

// Reply builds a response to this message: fresh ID, sender and recipient
// swapped. The original message is not modified.
func (m Message) Reply(kind Kind, payload map[string]any) Message {
	return NewMessage(m.RecipientID, m.SenderID, kind, payload)
}

// NewID returns a new globally unique identifier (UUID string).
func NewID() string { return uuid.NewString() }

// Service returns the "service" payload field or "".
func (m Message) Service() string { return m.stringField(FieldService) }

// PaymentProof returns the "paymentProof" payload field or "" when absent.
func (m Message) PaymentProof() string { return m.stringField(FieldPaymentProof) }

// Recipient returns the "recipient" payload field or "".
func (m Message) Recipient() string { return m.stringField(FieldRecipient) }

// Text returns the human-readable "message" payload field or "".
func (m Message) Text() string { return m.stringField(FieldMessage) }

// Status returns the "status" payload field or "".
func (m Message) Status() string { return m.stringField(FieldStatus) }

// ErrorText returns the "error" payload field or "".
func (m Message) ErrorText() string { return m.stringField(FieldError) }

// Reason returns the "reason" payload field or "".
func (m Message) Reason() string { return m.stringField(FieldReason) }

// Price returns the "price" payload field as a float64, 0 when absent.
func (m Message) Price() float64 {
	v, _ := m.numberField(FieldPrice)
	return v
}

// Quantity returns the "quantity" payload field, defaulting to 1 when the
// field is absent or not positive.
func (m Message) Quantity() int {
	v, ok := m.numberField(FieldQuantity)
	if !ok || v < 1 {
		return 1
	}
	return int(v)
}

func (m Message) stringField(key string) string {
	if m.Payload == nil {
		return ""
	}
	if s, ok := m.Payload[key].(string); ok {
		return s
	}
	return ""
}

// numberField tolerates the numeric representations produced by JSON
// round-trips (float64, json.Number) as well as native ints.
func (m Message) numberField(key string) (float64, bool) {
	if m.Payload == nil {
		return 0, false
	}
	switch v := m.Payload[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
