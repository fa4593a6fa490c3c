package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Phase is the negotiation phase a transaction is in. The sequence for a
// successful purchase is Initiated → PaymentRequired → PaymentSubmitted →
// Verifying → Delivered; Declined, Delivered and Invalid are terminal.
type Phase int

const (
	// PhaseInitiated marks a freshly opened transaction: the requester has
	// sent (or the provider has received) a service request without proof.
	PhaseInitiated Phase = iota
	// PhasePaymentRequired marks that the provider has quoted a price.
	PhasePaymentRequired
	// PhasePaymentSubmitted marks that the requester has produced a proof
	// and resubmitted the service request.
	PhasePaymentSubmitted
	// PhaseVerifying marks that the provider is checking a submitted proof.
	PhaseVerifying
	// PhaseDelivered marks successful delivery. Terminal.
	PhaseDelivered
	// PhaseDeclined marks a requester-side rejection of the quote. Terminal.
	PhaseDeclined
	// PhaseInvalid marks a failed proof verification. Terminal unless the
	// requester retries with a new proof, which re-enters PaymentSubmitted
	// under the same transaction key.
	PhaseInvalid
)

// String returns the lower-case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseInitiated:
		return "initiated"
	case PhasePaymentRequired:
		return "payment_required"
	case PhasePaymentSubmitted:
		return "payment_submitted"
	case PhaseVerifying:
		return "verifying"
	case PhaseDelivered:
		return "delivered"
	case PhaseDeclined:
		return "declined"
	case PhaseInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends a transaction.
func (p Phase) Terminal() bool {
	return p == PhaseDelivered || p == PhaseDeclined || p == PhaseInvalid
}

// phaseTransitions is the allowed-successor table. Invalid → PaymentSubmitted
// models the explicit retry path with a fresh proof.
var phaseTransitions = map[Phase][]Phase{
	PhaseInitiated:        {PhasePaymentRequired, PhasePaymentSubmitted, PhaseVerifying, PhaseDeclined},
	PhasePaymentRequired:  {PhasePaymentSubmitted, PhaseVerifying, PhaseDeclined},
	PhasePaymentSubmitted: {PhaseVerifying, PhaseDelivered, PhaseInvalid},
	PhaseVerifying:        {PhaseDelivered, PhaseInvalid},
	PhaseInvalid:          {PhasePaymentSubmitted},
}

// CanAdvance reports whether next is an allowed successor of p.
func (p Phase) CanAdvance(next Phase) bool {
	for _, n := range phaseTransitions[p] {
		if n == next {
			return true
		}
	}
	return false
}

// Transaction is the per-counterparty negotiation state held in a Tracker.
// Price and Recipient are recorded on the requester side once a quote
// arrives so that retries can re-pay without a new round trip.
type Transaction struct {
	Service      string    `json:"service"`
	Quantity     int       `json:"quantity,omitempty"`
	PaymentProof string    `json:"payment_proof,omitempty"`
	Phase        Phase     `json:"phase"`
	Price        float64   `json:"price,omitempty"`
	Recipient    string    `json:"recipient,omitempty"`
	Updated      time.Time `json:"updated"`
}

// Tracker errors.
var (
	ErrNoTransaction     = errors.New("no transaction for counterparty")
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// Tracker maps counterparty agent ids to in-flight transactions. It is owned
// by exactly one agent; the mutex exists because the HTTP binding may run a
// handler concurrently with the routing loop, not to share the tracker
// between agents.
type Tracker struct {
	mu  sync.RWMutex
	txs map[string]Transaction
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{txs: make(map[string]Transaction)}
}

// Get returns a copy of the transaction for the given counterparty.
func (t *Tracker) Get(counterparty string) (Transaction, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tx, ok := t.txs[counterparty]
	return tx, ok
}

// Put stores (or replaces) the transaction for a counterparty, stamping
// Updated.
func (t *Tracker) Put(counterparty string, tx Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx.Updated = time.Now().UTC()
	t.txs[counterparty] = tx
}

// Advance moves the transaction for counterparty to the next phase. The
// transition must be allowed by the phase table.
func (t *Tracker) Advance(counterparty string, next Phase) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.txs[counterparty]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTransaction, counterparty)
	}
	if !tx.Phase.CanAdvance(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Phase, next)
	}
	tx.Phase = next
	tx.Updated = time.Now().UTC()
	t.txs[counterparty] = tx
	return nil
}

// SetProof records a payment proof on an existing transaction.
func (t *Tracker) SetProof(counterparty, proof string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	tx, ok := t.txs[counterparty]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTransaction, counterparty)
	}
	tx.PaymentProof = proof
	tx.Updated = time.Now().UTC()
	t.txs[counterparty] = tx
	return nil
}

// Delete removes the transaction for a counterparty. Removing terminal
// transactions bounds tracker memory over the agent's lifetime.
func (t *Tracker) Delete(counterparty string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.txs, counterparty)
}

// Len returns the number of in-flight transactions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.txs)
}
