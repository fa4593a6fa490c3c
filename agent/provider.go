package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/logging"
	"github.com/hupe1980/agentpay/model"
)

// ProviderOptions configures a Provider.
type ProviderOptions struct {
	// Description overrides the default agent description.
	Description string
	// Inventory seeds the stocked quantity per service.
	Inventory map[string]int
	// Prices holds the unit price per service; DefaultPrice applies to
	// services without an entry.
	Prices       map[string]float64
	DefaultPrice float64
	// PayoutAddress is advertised as the payment recipient in quotes.
	PayoutAddress string
	// TextModel generates the human-readable payload lines. Optional; canned
	// phrases are used when nil or on generation errors.
	TextModel model.Model
	Logger    logging.Logger
}

// Provider is the selling side of a negotiation: it quotes prices for
// service requests, verifies submitted payment proofs and dispenses from a
// tracked inventory. Internal state is mutex-guarded because the HTTP
// binding may invoke handlers concurrently with the routing loop.
type Provider struct {
	Base

	mu           sync.Mutex
	inventory    map[string]int
	consumed     map[string]string // proof -> dispensed service
	prices       map[string]float64
	defaultPrice float64

	payoutAddress string
	verifier      core.PaymentVerifier
	text          model.Model
}

var _ core.Agent = (*Provider)(nil)

// NewProvider constructs a provider agent with the given payment verifier.
// Inventory and prices default to the demo stock (coke, pepsi, water).
func NewProvider(id, name string, verifier core.PaymentVerifier, optFns ...func(o *ProviderOptions)) *Provider {
	opts := ProviderOptions{
		Description:  "service provider with payment verification",
		Inventory:    map[string]int{"coke": 50, "pepsi": 30, "water": 20},
		Prices:       map[string]float64{"coke": 0.1, "pepsi": 0.1, "water": 0.05},
		DefaultPrice: 0.1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	p := &Provider{
		Base:          NewBase(id, name, opts.Description, opts.Logger),
		inventory:     make(map[string]int, len(opts.Inventory)),
		consumed:      make(map[string]string),
		prices:        make(map[string]float64, len(opts.Prices)),
		defaultPrice:  opts.DefaultPrice,
		payoutAddress: opts.PayoutAddress,
		verifier:      verifier,
		text:          opts.TextModel,
	}
	for k, v := range opts.Inventory {
		p.inventory[k] = v
	}
	for k, v := range opts.Prices {
		p.prices[k] = v
	}

	p.AddCapability(core.Capability{
		Name:        "service_dispensing",
		Description: "Dispense stocked services for verified payments",
		Parameters:  map[string]any{"services": serviceNames(opts.Inventory)},
	})
	p.AddCapability(core.Capability{
		Name:        "payment_verification",
		Description: "Verify payment proofs before delivery",
		Parameters:  map[string]any{"min_amount": 0.01},
	})
	p.AddCapability(core.Capability{
		Name:        "ai_responses",
		Description: "Natural language negotiation messages",
	})

	p.RegisterHandler(core.KindServiceRequest, p.handleServiceRequest)

	return p
}

func serviceNames(inventory map[string]int) []string {
	names := make([]string, 0, len(inventory))
	for name := range inventory {
		names = append(names, name)
	}
	return names
}

// InventoryCount returns the stocked quantity for a service.
func (p *Provider) InventoryCount(service string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inventory[service]
}

// Restock adds n units of a service to the inventory.
func (p *Provider) Restock(service string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inventory[service] += n
}

// PriceFor returns the unit price for a service.
func (p *Provider) PriceFor(service string) float64 {
	if price, ok := p.prices[service]; ok {
		return price
	}
	return p.defaultPrice
}

// handleServiceRequest drives the provider side of the negotiation.
// Availability is checked before payment status on every request; a request
// without proof yields a quote, a request with proof is verified statelessly.
func (p *Provider) handleServiceRequest(ctx context.Context, msg core.Message) (*core.Message, error) {
	service := msg.Service()
	qty := msg.Quantity()
	proof := msg.PaymentProof()

	if avail := p.InventoryCount(service); avail < qty {
		p.Logger().Warn("insufficient inventory service=%s requested=%d available=%d", service, qty, avail)
		resp := msg.Reply(core.KindServiceUnavailable, map[string]any{
			core.FieldError:     fmt.Sprintf("insufficient inventory for %s", service),
			core.FieldAvailable: avail,
		})
		return &resp, nil
	}

	if proof == "" {
		return p.quote(ctx, msg, service, qty)
	}
	return p.verifyAndDispense(ctx, msg, service, qty, proof)
}

func (p *Provider) quote(ctx context.Context, msg core.Message, service string, qty int) (*core.Message, error) {
	price := p.PriceFor(service) * float64(qty)

	p.Tracker().Put(msg.SenderID, core.Transaction{Service: service, Quantity: qty, Phase: core.PhasePaymentRequired})
	p.Logger().Info("payment required service=%s price=%g requester=%s", service, price, msg.SenderID)

	resp := msg.Reply(core.KindPaymentRequired, map[string]any{
		core.FieldPrice:     price,
		core.FieldRecipient: p.payoutAddress,
		core.FieldMessage:   p.generate(ctx, fmt.Sprintf("Write one short, friendly line asking the customer to pay %g for %s.", price, service), model.PaymentRequestPhrase(price)),
	})
	return &resp, nil
}

func (p *Provider) verifyAndDispense(ctx context.Context, msg core.Message, service string, qty int, proof string) (*core.Message, error) {
	// A proof without a prior quote is valid: verification is stateless and
	// requires no round-trip history, only a proof the backend can check.
	if tx, ok := p.Tracker().Get(msg.SenderID); !ok || tx.Phase.Terminal() {
		p.Tracker().Put(msg.SenderID, core.Transaction{Service: service, Quantity: qty, Phase: core.PhasePaymentSubmitted, PaymentProof: proof})
	} else {
		_ = p.Tracker().SetProof(msg.SenderID, proof)
	}
	_ = p.Tracker().Advance(msg.SenderID, core.PhaseVerifying)

	valid, err := p.verifier.VerifyPayment(ctx, proof)
	if err != nil {
		// Collaborator failure surfaces as a business error, never as a
		// routing-loop failure.
		p.Logger().Error("payment verification error requester=%s: %v", msg.SenderID, err)
		_ = p.Tracker().Advance(msg.SenderID, core.PhaseInvalid)
		resp := msg.Reply(core.KindPaymentInvalid, map[string]any{
			core.FieldError: fmt.Sprintf("payment verification failed: %v", err),
		})
		return &resp, nil
	}
	if !valid {
		p.Logger().Warn("payment invalid requester=%s proof=%s", msg.SenderID, proof)
		_ = p.Tracker().Advance(msg.SenderID, core.PhaseInvalid)
		// The tracker entry stays so a retried proof reuses the same
		// transaction key.
		resp := msg.Reply(core.KindPaymentInvalid, map[string]any{
			core.FieldError: "Payment verification failed",
		})
		return &resp, nil
	}

	remaining, ok := p.dispense(service, qty, proof)
	if !ok {
		// A concurrent request emptied the stock while this payment was
		// being verified.
		p.Logger().Warn("inventory exhausted during verification service=%s requester=%s", service, msg.SenderID)
		p.Tracker().Delete(msg.SenderID)
		resp := msg.Reply(core.KindServiceUnavailable, map[string]any{
			core.FieldError:     fmt.Sprintf("insufficient inventory for %s", service),
			core.FieldAvailable: remaining,
		})
		return &resp, nil
	}

	_ = p.Tracker().Advance(msg.SenderID, core.PhaseDelivered)
	p.Tracker().Delete(msg.SenderID)
	p.Logger().Info("service delivered service=%s requester=%s remaining=%d", service, msg.SenderID, remaining)

	resp := msg.Reply(core.KindServiceDelivered, map[string]any{
		core.FieldStatus:    p.generate(ctx, fmt.Sprintf("Write one short, cheerful line confirming %s was delivered after a verified payment.", service), model.DeliveryPhrase(service)),
		core.FieldService:   service,
		core.FieldRemaining: remaining,
	})
	return &resp, nil
}

// dispense decrements inventory exactly once per distinct proof. The
// availability re-check and the decrement share one critical section;
// handlers suspend on payment verification between the initial check and
// this call. A replayed proof that already dispensed leaves the inventory
// untouched.
func (p *Provider) dispense(service string, qty int, proof string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, done := p.consumed[proof]; done {
		return p.inventory[service], true
	}
	if p.inventory[service] < qty {
		return p.inventory[service], false
	}
	p.inventory[service] -= qty
	p.consumed[proof] = service
	return p.inventory[service], true
}

// generate asks the text model for a payload line, falling back to a canned
// phrase; text generation never influences control flow.
func (p *Provider) generate(ctx context.Context, prompt, fallback string) string {
	if p.text == nil {
		return fallback
	}
	text, err := p.text.Generate(ctx, prompt)
	if err != nil {
		p.Logger().Debug("text generation failed, using canned phrase: %v", err)
		return fallback
	}
	return text
}
