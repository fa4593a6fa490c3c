package core

import "context"

// HandlerFunc processes one inbound message and returns an optional outbound
// response. A nil response with a nil error means the negotiation needs no
// reply (for example after a delivery confirmation). Handlers may suspend on
// external collaborator calls; the routing loop does not assume they return
// immediately.
type HandlerFunc func(ctx context.Context, msg Message) (*Message, error)

// Agent is an independent actor exchanging Messages through an orchestrator.
// Agents never share mutable state; all cross-agent interaction flows through
// messages. Init and Shutdown are lifecycle hooks invoked by the orchestrator
// on start and cooperative shutdown.
//
// Implementations must keep HandleMessage safe for concurrent use when the
// agent is additionally exposed over a transport binding such as HTTP.
type Agent interface {
	ID() string
	Name() string
	Description() string
	Capabilities() []Capability
	Init(ctx context.Context) error
	Shutdown(ctx context.Context) error
	HandleMessage(ctx context.Context, msg Message) (*Message, error)
}
