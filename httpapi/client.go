package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/logging"
)

// Outcome summarizes one HTTP purchase attempt.
type Outcome struct {
	// Delivered reports whether the service was obtained.
	Delivered bool
	// Reason explains a non-delivered outcome.
	Reason string
	// Price and Proof are set once a quote was received and paid.
	Price float64
	Proof string
	// Payload is the provider's final response body.
	Payload map[string]any
}

// ClientOptions configures a Client.
type ClientOptions struct {
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Client drives the purchase flow against a provider's HTTP binding: fetch
// a quote, evaluate it, pay and retry the request with the proof attached.
type Client struct {
	baseURL  string
	decide   core.DecisionFunc
	payments core.PaymentClient
	http     *http.Client
	logger   logging.Logger
}

// NewClient creates a purchase client for the provider at baseURL.
func NewClient(baseURL string, decide core.DecisionFunc, payments core.PaymentClient, optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		HTTPClient: http.DefaultClient,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Client{
		baseURL:  baseURL,
		decide:   decide,
		payments: payments,
		http:     opts.HTTPClient,
		logger:   opts.Logger,
	}
}

// Purchase negotiates one service end to end. Business failures (declined
// quote, rejected proof, unavailable service) are reported in the Outcome;
// the error return is reserved for transport and decoding failures.
func (c *Client) Purchase(ctx context.Context, service string) (*Outcome, error) {
	status, body, err := c.dispense(ctx, service, "")
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		// Provider dispensed without asking for payment.
		return &Outcome{Delivered: true, Payload: body}, nil
	case http.StatusConflict:
		return &Outcome{Reason: stringField(body, core.FieldError), Payload: body}, nil
	case http.StatusPaymentRequired:
	default:
		return nil, fmt.Errorf("unexpected status %d requesting %s", status, service)
	}

	price := numberField(body, core.FieldPrice)
	recipient := stringField(body, core.FieldRecipient)
	c.logger.Info("payment required service=%s price=%g recipient=%s", service, price, recipient)

	dec, err := c.decide(ctx, service, price)
	if err != nil {
		return nil, fmt.Errorf("decide on %s: %w", service, err)
	}
	if !dec.Accept {
		c.logger.Info("purchase declined service=%s reasoning=%q", service, dec.Reasoning)
		return &Outcome{Reason: dec.Reasoning, Price: price, Payload: body}, nil
	}

	res, err := c.payments.MakePayment(ctx, price, recipient)
	if err != nil {
		return nil, fmt.Errorf("pay for %s: %w", service, err)
	}
	if !res.Success {
		return &Outcome{Reason: fmt.Sprintf("payment failed: %s", res.Err), Price: price}, nil
	}

	status, body, err = c.dispense(ctx, service, res.Proof)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Price: price, Proof: res.Proof, Payload: body}

	switch status {
	case http.StatusOK:
		out.Delivered = true
	case http.StatusBadRequest, http.StatusConflict:
		out.Reason = stringField(body, core.FieldError)
	default:
		return nil, fmt.Errorf("unexpected status %d dispensing %s", status, service)
	}

	return out, nil
}

// Status fetches the provider's status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching provider status", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	return body, nil
}

func (c *Client) dispense(ctx context.Context, service, proof string) (int, map[string]any, error) {
	u := fmt.Sprintf("%s/dispense?service=%s", c.baseURL, url.QueryEscape(service))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}

	if proof != "" {
		req.Header.Set(ProofHeader, proof)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, nil, fmt.Errorf("decode dispense response: %w", err)
	}

	return resp.StatusCode, body, nil
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

func numberField(body map[string]any, key string) float64 {
	switch v := body[key].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
