package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/logging"
	"github.com/hupe1980/agentpay/model"
)

// RequesterOptions configures a Requester.
type RequesterOptions struct {
	// Description overrides the default agent description.
	Description string
	// MaxPaymentRetries is the number of fresh payment attempts after a
	// payment_invalid response. Zero (the default) treats the first invalid
	// verification as terminal.
	MaxPaymentRetries int
	// TextModel generates the human-readable lines logged around the
	// negotiation. Optional; canned phrases are used when nil or on errors.
	TextModel model.Model
	Logger    logging.Logger
}

// Requester is the buying side of a negotiation: it opens service requests,
// evaluates quotes with a pluggable decision function, pays through the
// payment client and tracks each provider's transaction until a terminal
// phase.
type Requester struct {
	Base

	decide   core.DecisionFunc
	payments core.PaymentClient
	text     model.Model

	maxRetries int
	mu         sync.Mutex
	retries    map[string]int // provider id -> payment attempts after invalid
}

var _ core.Agent = (*Requester)(nil)

// NewRequester constructs a requester agent with the given decision function
// and payment client.
func NewRequester(id, name string, decide core.DecisionFunc, payments core.PaymentClient, optFns ...func(o *RequesterOptions)) *Requester {
	opts := RequesterOptions{
		Description: "autonomous buyer with payment capabilities",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Requester{
		Base:       NewBase(id, name, opts.Description, opts.Logger),
		decide:     decide,
		payments:   payments,
		text:       opts.TextModel,
		maxRetries: opts.MaxPaymentRetries,
		retries:    make(map[string]int),
	}

	r.AddCapability(core.Capability{Name: "autonomous_purchasing", Description: "Negotiate and purchase services without supervision"})
	r.AddCapability(core.Capability{Name: "blockchain_payments", Description: "Produce payment proofs via the configured backend"})
	r.AddCapability(core.Capability{Name: "ai_decision_making", Description: "Evaluate quotes with a pluggable decision policy"})

	r.RegisterHandler(core.KindPaymentRequired, r.handlePaymentRequired)
	r.RegisterHandler(core.KindServiceDelivered, r.handleServiceDelivered)
	r.RegisterHandler(core.KindPaymentInvalid, r.handlePaymentInvalid)
	r.RegisterHandler(core.KindServiceUnavailable, r.handleServiceUnavailable)

	return r
}

// RequestOptions configures a single service request.
type RequestOptions struct {
	// Quantity is the number of units to request. Defaults to 1.
	Quantity int
}

// RequestService opens a transaction with a provider and returns the initial
// service_request message. The caller enqueues it at the orchestrator.
func (r *Requester) RequestService(providerID, service string, optFns ...func(o *RequestOptions)) core.Message {
	opts := RequestOptions{Quantity: 1}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Quantity < 1 {
		opts.Quantity = 1
	}

	r.Tracker().Put(providerID, core.Transaction{Service: service, Quantity: opts.Quantity, Phase: core.PhaseInitiated})
	r.Logger().Info("requesting service provider=%s service=%s quantity=%d", providerID, service, opts.Quantity)
	r.Logger().Debug("%s", model.RequestPhrase(service))

	payload := map[string]any{core.FieldService: service}
	if opts.Quantity > 1 {
		payload[core.FieldQuantity] = opts.Quantity
	}
	return r.SendMessage(providerID, core.KindServiceRequest, payload)
}

// handlePaymentRequired evaluates the quote and either declines or pays and
// resubmits the request with the proof. A declined decision never reaches
// the payment backend.
func (r *Requester) handlePaymentRequired(ctx context.Context, msg core.Message) (*core.Message, error) {
	price := msg.Price()
	recipient := msg.Recipient()

	tx, ok := r.Tracker().Get(msg.SenderID)
	if !ok {
		// Quote without a tracked request; negotiate it anyway.
		tx = core.Transaction{Service: "unknown service", Quantity: 1, Phase: core.PhaseInitiated}
	}
	tx.Price = price
	tx.Recipient = recipient
	tx.Phase = core.PhasePaymentRequired
	r.Tracker().Put(msg.SenderID, tx)

	r.Logger().Info("payment required provider=%s service=%s price=%g", msg.SenderID, tx.Service, price)

	dec, err := r.decide(ctx, tx.Service, price)
	if err != nil {
		r.Logger().Error("decision failed provider=%s: %v", msg.SenderID, err)
		return r.decline(msg, fmt.Sprintf("decision failed: %v", err)), nil
	}
	r.Logger().Info("purchase decision accept=%t reasoning=%q", dec.Accept, dec.Reasoning)
	if !dec.Accept {
		return r.decline(msg, dec.Reasoning), nil
	}

	return r.payAndResubmit(ctx, msg.SenderID, tx)
}

// decline removes the transaction and builds the purchase_declined response.
func (r *Requester) decline(msg core.Message, reason string) *core.Message {
	r.Tracker().Delete(msg.SenderID)
	r.clearRetries(msg.SenderID)
	resp := msg.Reply(core.KindPurchaseDeclined, map[string]any{
		core.FieldReason: reason,
	})
	return &resp
}

// payAndResubmit executes the payment and resends the service request with
// the obtained proof. Payment backend failures terminate the transaction as
// a business error.
func (r *Requester) payAndResubmit(ctx context.Context, providerID string, tx core.Transaction) (*core.Message, error) {
	res, err := r.payments.MakePayment(ctx, tx.Price, tx.Recipient)
	if err != nil {
		r.Logger().Error("payment failed provider=%s: %v", providerID, err)
		r.Tracker().Delete(providerID)
		r.clearRetries(providerID)
		resp := r.SendMessage(providerID, core.KindPurchaseDeclined, map[string]any{
			core.FieldReason: fmt.Sprintf("payment failed: %v", err),
		})
		return &resp, nil
	}
	if !res.Success {
		r.Logger().Error("payment rejected provider=%s: %s", providerID, res.Err)
		r.Tracker().Delete(providerID)
		r.clearRetries(providerID)
		resp := r.SendMessage(providerID, core.KindPurchaseDeclined, map[string]any{
			core.FieldReason: fmt.Sprintf("payment failed: %s", res.Err),
		})
		return &resp, nil
	}

	r.Logger().Info("payment successful provider=%s proof=%s", providerID, res.Proof)
	_ = r.Tracker().SetProof(providerID, res.Proof)
	_ = r.Tracker().Advance(providerID, core.PhasePaymentSubmitted)

	// The resubmission restates the negotiated quantity so the provider
	// dispenses what the quote priced.
	payload := map[string]any{
		core.FieldService:      tx.Service,
		core.FieldPaymentProof: res.Proof,
	}
	if tx.Quantity > 1 {
		payload[core.FieldQuantity] = tx.Quantity
	}
	resp := r.SendMessage(providerID, core.KindServiceRequest, payload)
	return &resp, nil
}

// handleServiceDelivered closes out a successful transaction.
func (r *Requester) handleServiceDelivered(ctx context.Context, msg core.Message) (*core.Message, error) {
	service := msg.Service()
	if service == "" {
		if tx, ok := r.Tracker().Get(msg.SenderID); ok {
			service = tx.Service
		}
	}
	r.Logger().Info("service delivered provider=%s status=%q", msg.SenderID, msg.Status())
	r.Logger().Info("%s", r.generate(ctx, fmt.Sprintf("Write one short, happy line celebrating that %s was obtained.", service), model.SuccessPhrase(service)))

	r.Tracker().Delete(msg.SenderID)
	r.clearRetries(msg.SenderID)
	return nil, nil
}

// handlePaymentInvalid retries with a fresh proof while budget remains,
// otherwise abandons the transaction.
func (r *Requester) handlePaymentInvalid(ctx context.Context, msg core.Message) (*core.Message, error) {
	r.Logger().Warn("payment invalid provider=%s error=%q", msg.SenderID, msg.ErrorText())

	tx, ok := r.Tracker().Get(msg.SenderID)
	if !ok {
		return nil, nil
	}
	_ = r.Tracker().Advance(msg.SenderID, core.PhaseInvalid)

	if !r.takeRetry(msg.SenderID) {
		r.Tracker().Delete(msg.SenderID)
		r.clearRetries(msg.SenderID)
		return nil, nil
	}

	r.Logger().Info("retrying payment provider=%s service=%s", msg.SenderID, tx.Service)
	return r.payAndResubmit(ctx, msg.SenderID, tx)
}

// handleServiceUnavailable abandons the transaction; the provider cannot
// fulfill it regardless of payment.
func (r *Requester) handleServiceUnavailable(_ context.Context, msg core.Message) (*core.Message, error) {
	r.Logger().Warn("service unavailable provider=%s error=%q", msg.SenderID, msg.ErrorText())
	r.Tracker().Delete(msg.SenderID)
	r.clearRetries(msg.SenderID)
	return nil, nil
}

// takeRetry consumes one unit of retry budget for a provider, reporting
// whether a retry is allowed.
func (r *Requester) takeRetry(providerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retries[providerID] >= r.maxRetries {
		return false
	}
	r.retries[providerID]++
	return true
}

func (r *Requester) clearRetries(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.retries, providerID)
}

// generate asks the text model for a line, falling back to a canned phrase.
func (r *Requester) generate(ctx context.Context, prompt, fallback string) string {
	if r.text == nil {
		return fallback
	}
	text, err := r.text.Generate(ctx, prompt)
	if err != nil {
		r.Logger().Debug("text generation failed, using canned phrase: %v", err)
		return fallback
	}
	return text
}
