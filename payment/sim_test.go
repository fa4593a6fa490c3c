package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimClient_MakePayment(t *testing.T) {
	client := NewSimClient(func(o *SimClientOptions) {
		o.PrivateKey = "0xbuyerkey"
	})

	res, err := client.MakePayment(context.Background(), 0.1, "0xseller")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, strings.HasPrefix(res.Proof, "0x"))
	assert.Len(t, res.Proof, 66)
	assert.InDelta(t, 0.1, res.Amount, 1e-9)
	assert.Equal(t, "0xseller", res.Recipient)
	assert.Equal(t, DefaultNetwork, res.Network)
}

func TestSimClient_MakePayment_UniqueProofs(t *testing.T) {
	client := NewSimClient(func(o *SimClientOptions) {
		o.PrivateKey = "0xbuyerkey"
	})

	first, err := client.MakePayment(context.Background(), 0.1, "0xseller")
	require.NoError(t, err)

	second, err := client.MakePayment(context.Background(), 0.1, "0xseller")
	require.NoError(t, err)

	assert.NotEqual(t, first.Proof, second.Proof)
}

func TestSimClient_MakePayment_MissingCredentials(t *testing.T) {
	tests := []struct {
		name       string
		privateKey string
		recipient  string
	}{
		{"no private key", "", "0xseller"},
		{"no recipient", "0xbuyerkey", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewSimClient(func(o *SimClientOptions) {
				o.PrivateKey = tt.privateKey
			})

			res, err := client.MakePayment(context.Background(), 0.1, tt.recipient)
			require.NoError(t, err)

			assert.False(t, res.Success)
			assert.Empty(t, res.Proof)
			assert.NotEmpty(t, res.Err)
		})
	}
}

func TestSimVerifier_VerifyPayment(t *testing.T) {
	verifier := NewSimVerifier()

	tests := []struct {
		name  string
		proof string
		valid bool
	}{
		{"valid proof", "0x1234567890abcdef", true},
		{"garbage", "garbage", false},
		{"empty", "", false},
		{"prefix only", "0x", false},
		{"too short", "0x1234567", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, err := verifier.VerifyPayment(context.Background(), tt.proof)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, valid)
		})
	}
}

func TestSimVerifier_AcceptsClientProofs(t *testing.T) {
	client := NewSimClient(func(o *SimClientOptions) {
		o.PrivateKey = "0xbuyerkey"
	})
	verifier := NewSimVerifier()

	res, err := client.MakePayment(context.Background(), 0.05, "0xseller")
	require.NoError(t, err)
	require.True(t, res.Success)

	valid, err := verifier.VerifyPayment(context.Background(), res.Proof)
	require.NoError(t, err)
	assert.True(t, valid)
}
