// Package model defines the text-generation collaborator used to produce the
// human-readable lines carried in negotiation payloads (payment requests,
// delivery confirmations). Generated text never influences control flow;
// callers fall back to the deterministic phrases in this package when a model
// is unavailable or errors.
//
// Provider adapters live in the subpackages anthropic, openai and gemini.
package model
