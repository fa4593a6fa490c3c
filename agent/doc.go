// Package agent implements the negotiation actors: Base carries identity, the
// capability registry, the handler table and the transaction tracker shared
// by all agents; Provider is the selling side (inventory, pricing, payment
// verification, delivery); Requester is the buying side (purchase decision,
// payment, retry policy).
//
// Agents construct outbound messages via SendMessage but never enqueue them
// themselves; routing is the orchestrator's job, keeping negotiation logic
// decoupled from transport.
package agent
