package payment

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/agentpay/core"
)

// DefaultNetwork is the simulated network label attached to results.
const DefaultNetwork = "devnet"

// SimClientOptions configures a SimClient.
type SimClientOptions struct {
	PrivateKey string
	Network    string
}

// SimClient simulates a requester-side blockchain wallet. A payment succeeds
// whenever credentials and recipient are present and yields a transaction
// hash shaped proof token.
type SimClient struct {
	opts SimClientOptions
}

// NewSimClient constructs a simulated payment client.
func NewSimClient(optFns ...func(o *SimClientOptions)) *SimClient {
	opts := SimClientOptions{Network: DefaultNetwork}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SimClient{opts: opts}
}

// MakePayment implements core.PaymentClient. Failures (missing key or
// recipient) are reported in the result, not as an error, mirroring how a
// real backend distinguishes rejected transactions from transport errors.
func (c *SimClient) MakePayment(ctx context.Context, amount float64, recipient string) (core.PaymentResult, error) {
	select {
	case <-ctx.Done():
		return core.PaymentResult{}, ctx.Err()
	default:
	}

	if c.opts.PrivateKey == "" || recipient == "" {
		return core.PaymentResult{
			Success: false,
			Amount:  amount,
			Network: c.opts.Network,
			Err:     "missing private key or recipient address",
		}, nil
	}

	return core.PaymentResult{
		Success:   true,
		Proof:     newProof(),
		Amount:    amount,
		Recipient: recipient,
		Network:   c.opts.Network,
	}, nil
}

// WalletInfo reports static wallet metadata.
func (c *SimClient) WalletInfo() map[string]any {
	return map[string]any{
		"network":         c.opts.Network,
		"has_private_key": c.opts.PrivateKey != "",
		"currencies":      []string{"APT"},
	}
}

// newProof produces a 64-hex-char transaction hash with 0x prefix.
func newProof() string {
	a := uuid.New()
	b := uuid.New()
	return "0x" + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}

// SimVerifierOptions configures a SimVerifier.
type SimVerifierOptions struct {
	Network string
}

// SimVerifier simulates provider-side payment verification: a proof is valid
// when it is 0x-prefixed and longer than ten characters. The check is a pure
// function of the proof, which makes repeated verification idempotent.
type SimVerifier struct {
	opts SimVerifierOptions
}

// NewSimVerifier constructs a simulated payment verifier.
func NewSimVerifier(optFns ...func(o *SimVerifierOptions)) *SimVerifier {
	opts := SimVerifierOptions{Network: DefaultNetwork}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SimVerifier{opts: opts}
}

// VerifyPayment implements core.PaymentVerifier.
func (v *SimVerifier) VerifyPayment(ctx context.Context, proof string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}
	return strings.HasPrefix(proof, "0x") && len(proof) > 10, nil
}

// PaymentInfo reports the metadata a provider advertises with a quote.
func (v *SimVerifier) PaymentInfo(price float64, recipient string) map[string]any {
	return map[string]any{
		"price":     price,
		"currency":  "APT",
		"recipient": recipient,
		"network":   v.opts.Network,
	}
}
