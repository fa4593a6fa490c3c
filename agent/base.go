package agent

import (
	"context"
	"sync"

	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/logging"
)

// Base bundles the state every negotiation agent carries: identity, the
// append-only capability registry, the handler table keyed by message kind
// and the per-counterparty transaction tracker. Embed it in concrete agents
// and register handlers at construction time.
type Base struct {
	id          string
	name        string
	description string

	mu           sync.RWMutex
	capabilities []core.Capability
	handlers     map[core.Kind]core.HandlerFunc

	tracker *core.Tracker
	logger  logging.Logger
}

// NewBase constructs a Base with an empty handler table and tracker. A nil
// logger is replaced with the no-op logger.
func NewBase(id, name, description string, logger logging.Logger) Base {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return Base{
		id:          id,
		name:        name,
		description: description,
		handlers:    make(map[core.Kind]core.HandlerFunc),
		tracker:     core.NewTracker(),
		logger:      logger,
	}
}

// ID returns the opaque agent identifier used for message addressing.
func (b *Base) ID() string { return b.id }

// Name returns the human-readable agent name.
func (b *Base) Name() string { return b.name }

// Description returns a description of the agent's purpose.
func (b *Base) Description() string { return b.description }

// AddCapability appends a capability to the registry. Registration is
// informational only; it never changes dispatch behavior.
func (b *Base) AddCapability(c core.Capability) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.capabilities = append(b.capabilities, c)
	b.logger.Debug("capability added agent=%s capability=%s", b.id, c.Name)
}

// Capabilities returns a copy of the registered capabilities.
func (b *Base) Capabilities() []core.Capability {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.Capability, len(b.capabilities))
	copy(out, b.capabilities)
	return out
}

// RegisterHandler associates a handler with a message kind. Re-registering a
// kind replaces the prior handler (last-write-wins); handlers are expected to
// be registered once at construction.
func (b *Base) RegisterHandler(kind core.Kind, h core.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = h
}

// Tracker returns the agent's transaction tracker.
func (b *Base) Tracker() *core.Tracker { return b.tracker }

// Logger returns the agent's logger.
func (b *Base) Logger() logging.Logger { return b.logger }

// Init is the orchestrator start hook. The default implementation only logs.
func (b *Base) Init(_ context.Context) error {
	b.logger.Info("agent initializing agent=%s name=%s", b.id, b.name)
	return nil
}

// Shutdown is the orchestrator stop hook. The default implementation only logs.
func (b *Base) Shutdown(_ context.Context) error {
	b.logger.Info("agent shutting down agent=%s name=%s", b.id, b.name)
	return nil
}

// SendMessage constructs an outbound message from this agent. The caller is
// responsible for enqueuing it at the orchestrator; the agent never touches
// the transport directly.
func (b *Base) SendMessage(recipientID string, kind core.Kind, payload map[string]any) core.Message {
	msg := core.NewMessage(b.id, recipientID, kind, payload)
	b.logger.Debug("sending message kind=%s recipient=%s", kind, recipientID)
	return msg
}

// HandleMessage dispatches an inbound message via the handler table. An
// unhandled kind is logged and dropped without a response; it is not an
// error.
func (b *Base) HandleMessage(ctx context.Context, msg core.Message) (*core.Message, error) {
	b.mu.RLock()
	h, ok := b.handlers[msg.Kind]
	b.mu.RUnlock()
	if !ok {
		b.logger.Warn("no handler for message kind agent=%s kind=%s", b.id, msg.Kind)
		return nil, nil
	}
	return h(ctx, msg)
}
