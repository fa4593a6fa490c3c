package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreshold(t *testing.T) {
	decide := Threshold(1.0)

	tests := []struct {
		name   string
		price  float64
		accept bool
	}{
		{"cheap", 0.1, true},
		{"free", 0, true},
		{"exactly at budget", 1.0, true},
		{"just over budget", 1.01, false},
		{"expensive", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := decide(context.Background(), "soda", tt.price)
			require.NoError(t, err)

			assert.Equal(t, tt.accept, dec.Accept)
			assert.NotEmpty(t, dec.Reasoning)
		})
	}
}

func TestThreshold_ReasoningMentionsVerdict(t *testing.T) {
	decide := Threshold(DefaultThreshold)

	dec, err := decide(context.Background(), "soda", 0.1)
	require.NoError(t, err)
	assert.Contains(t, dec.Reasoning, "acceptable")

	dec, err = decide(context.Background(), "soda", 2)
	require.NoError(t, err)
	assert.Contains(t, dec.Reasoning, "too expensive")
}
