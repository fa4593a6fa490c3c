// Package payment provides the simulated blockchain payment backends used by
// the negotiation demos and tests: a requester-side client producing proof
// tokens and a provider-side verifier checking them. Both implement the
// collaborator interfaces defined in core and can be swapped for real
// settlement integrations without touching the negotiation logic.
package payment
