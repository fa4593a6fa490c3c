// Package core contains the shared data types and collaborator contracts of
// the AgentPay negotiation protocol: the immutable Message envelope with its
// closed kind vocabulary, agent capabilities, the per-counterparty transaction
// tracker with its phase machine, and the interfaces for the external
// decision and payment collaborators.
//
// The package has no dependencies on other agentpay packages so every layer
// (agents, engine, HTTP binding) can share these types freely.
package core
