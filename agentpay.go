// Package agentpay provides a high-level façade over the routing engine and
// agent abstractions for building agent-to-agent commerce systems. Most
// applications interact with this package by:
//  1. Creating an AgentPay via New() (optionally overriding the engine
//     configuration and logger)
//  2. Registering provider and requester agents
//  3. Enqueuing an initial service request and running the engine until the
//     negotiation settles
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. Defaults are safe for local development and
// testing; production deployments typically supply a structured logger.
package agentpay

import (
	"context"

	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/engine"
	"github.com/hupe1980/agentpay/logging"
)

// Options configures the AgentPay instance.
type Options struct {
	// EngineConfig tunes the routing loop (queue size, poll interval,
	// enqueue timeout).
	EngineConfig engine.Config

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentPay is the high-level façade aggregating the routing engine.
type AgentPay struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new AgentPay instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentPay {
	opts := Options{
		EngineConfig: engine.DefaultConfig(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = opts.Logger
	})

	return &AgentPay{opts: opts, engine: e}
}

// RegisterAgent adds an agent to the underlying engine.
func (p *AgentPay) RegisterAgent(a core.Agent) error { return p.engine.Register(a) }

// Enqueue submits a message for routing.
func (p *AgentPay) Enqueue(ctx context.Context, msg core.Message) error {
	return p.engine.Enqueue(ctx, msg)
}

// Start runs the routing loop on the calling goroutine until the context is
// canceled or Shutdown is called.
func (p *AgentPay) Start(ctx context.Context) error { return p.engine.Start(ctx) }

// StartBackground runs the routing loop on a new goroutine.
func (p *AgentPay) StartBackground(ctx context.Context) error {
	return p.engine.StartBackground(ctx)
}

// Shutdown stops the routing loop and runs the agents' shutdown hooks.
func (p *AgentPay) Shutdown(ctx context.Context) error { return p.engine.Shutdown(ctx) }

// Agents returns all registered agents.
func (p *AgentPay) Agents() []core.Agent { return p.engine.Agents() }

// Engine exposes the underlying engine for advanced use.
func (p *AgentPay) Engine() *engine.Engine { return p.engine }
