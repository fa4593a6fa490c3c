package core

import "context"

// Decision is the outcome of a purchase-policy evaluation.
type Decision struct {
	Accept    bool   `json:"accept"`
	Reasoning string `json:"reasoning"`
}

// DecisionFunc decides whether a quoted price for a service is acceptable.
// It is a pluggable collaborator; the negotiation core never inspects the
// policy itself, only the returned Decision.
type DecisionFunc func(ctx context.Context, service string, price float64) (Decision, error)

// PaymentResult reports the outcome of a payment attempt. When Success is
// false, Err carries the backend's failure description.
type PaymentResult struct {
	Success   bool    `json:"success"`
	Proof     string  `json:"proof,omitempty"`
	Amount    float64 `json:"amount"`
	Recipient string  `json:"recipient,omitempty"`
	Network   string  `json:"network,omitempty"`
	Err       string  `json:"error,omitempty"`
}

// PaymentClient is the requester-side payment backend producing proof tokens.
type PaymentClient interface {
	MakePayment(ctx context.Context, amount float64, recipient string) (PaymentResult, error)
}

// PaymentVerifier is the provider-side payment backend. VerifyPayment must be
// idempotent: verifying the same proof twice yields the same outcome, and it
// must be safe to call repeatedly with the same proof.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, proof string) (bool, error)
}
