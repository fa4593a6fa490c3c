package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpay/agent"
	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/payment"
	"github.com/hupe1980/agentpay/policy"
)

func newTestClient(t *testing.T, decide core.DecisionFunc, payments core.PaymentClient) (*Client, *agent.Provider) {
	t.Helper()

	srv, provider := newTestServer()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL, decide, payments), provider
}

func newWallet() *payment.SimClient {
	return payment.NewSimClient(func(o *payment.SimClientOptions) {
		o.PrivateKey = "0xbuyerkey"
	})
}

func TestClient_PurchaseDelivers(t *testing.T) {
	client, provider := newTestClient(t, policy.Threshold(policy.DefaultThreshold), newWallet())

	outcome, err := client.Purchase(context.Background(), "soda")
	require.NoError(t, err)

	assert.True(t, outcome.Delivered)
	assert.InDelta(t, 0.1, outcome.Price, 1e-9)
	assert.NotEmpty(t, outcome.Proof)
	assert.Equal(t, 1, provider.InventoryCount("soda"))
}

func TestClient_PurchaseDeclined(t *testing.T) {
	client, provider := newTestClient(t, policy.Threshold(0.05), newWallet())

	outcome, err := client.Purchase(context.Background(), "soda")
	require.NoError(t, err)

	assert.False(t, outcome.Delivered)
	assert.NotEmpty(t, outcome.Reason)
	assert.Empty(t, outcome.Proof)
	assert.Equal(t, 2, provider.InventoryCount("soda"))
}

func TestClient_PurchaseUnavailable(t *testing.T) {
	client, _ := newTestClient(t, policy.Threshold(policy.DefaultThreshold), newWallet())

	outcome, err := client.Purchase(context.Background(), "water")
	require.NoError(t, err)

	assert.False(t, outcome.Delivered)
	assert.Contains(t, outcome.Reason, "water")
}

func TestClient_PurchasePaymentFailure(t *testing.T) {
	// A wallet without credentials rejects every payment.
	wallet := payment.NewSimClient()

	client, provider := newTestClient(t, policy.Threshold(policy.DefaultThreshold), wallet)

	outcome, err := client.Purchase(context.Background(), "soda")
	require.NoError(t, err)

	assert.False(t, outcome.Delivered)
	assert.Contains(t, outcome.Reason, "payment failed")
	assert.Equal(t, 2, provider.InventoryCount("soda"))
}

func TestClient_Status(t *testing.T) {
	client, _ := newTestClient(t, policy.Threshold(policy.DefaultThreshold), newWallet())

	status, err := client.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fridge", status["agentId"])
	assert.Equal(t, "active", status["status"])
}
