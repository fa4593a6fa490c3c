package model

import (
	"context"
	"fmt"
)

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", "mock", etc.
}

// Model is the minimal interface required to turn a prompt into a single
// human-readable completion. Implementations must respect ctx cancellation.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Info() Info
}

// Mock is a lightweight in-memory Model useful for tests & examples.
type Mock struct {
	info      Info
	responses map[string]string
}

// NewMock constructs a Mock with canned responses keyed by prompt.
func NewMock(name, provider string) *Mock {
	return &Mock{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *Mock) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model; returns the canned completion or a generic echo.
func (m *Mock) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}

// Info implements Model.
func (m *Mock) Info() Info { return m.info }
