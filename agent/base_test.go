package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpay/core"
)

func TestBase_Identity(t *testing.T) {
	b := NewBase("agent-1", "Agent One", "does things", nil)

	assert.Equal(t, "agent-1", b.ID())
	assert.Equal(t, "Agent One", b.Name())
	assert.Equal(t, "does things", b.Description())
	assert.Empty(t, b.Capabilities())
}

func TestBase_Capabilities(t *testing.T) {
	b := NewBase("agent-1", "Agent One", "", nil)

	b.AddCapability(core.Capability{Name: "first"})
	b.AddCapability(core.Capability{Name: "second"})

	caps := b.Capabilities()
	require.Len(t, caps, 2)

	// Mutating the returned slice must not affect the agent.
	caps[0].Name = "mutated"
	assert.Equal(t, "first", b.Capabilities()[0].Name)
}

func TestBase_HandlerDispatch(t *testing.T) {
	b := NewBase("agent-1", "Agent One", "", nil)

	b.RegisterHandler(core.KindServiceRequest, func(ctx context.Context, msg core.Message) (*core.Message, error) {
		resp := msg.Reply(core.KindServiceDelivered, map[string]any{core.FieldStatus: "ok"})
		return &resp, nil
	})

	msg := core.NewMessage("peer", "agent-1", core.KindServiceRequest, nil)

	resp, err := b.HandleMessage(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, core.KindServiceDelivered, resp.Kind)
}

func TestBase_LastRegisteredHandlerWins(t *testing.T) {
	b := NewBase("agent-1", "Agent One", "", nil)

	b.RegisterHandler(core.KindServiceRequest, func(ctx context.Context, msg core.Message) (*core.Message, error) {
		resp := msg.Reply(core.KindPaymentRequired, nil)
		return &resp, nil
	})
	b.RegisterHandler(core.KindServiceRequest, func(ctx context.Context, msg core.Message) (*core.Message, error) {
		resp := msg.Reply(core.KindServiceDelivered, nil)
		return &resp, nil
	})

	resp, err := b.HandleMessage(context.Background(), core.NewMessage("peer", "agent-1", core.KindServiceRequest, nil))
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, core.KindServiceDelivered, resp.Kind)
}

func TestBase_UnknownKindReturnsNil(t *testing.T) {
	b := NewBase("agent-1", "Agent One", "", nil)

	resp, err := b.HandleMessage(context.Background(), core.NewMessage("peer", "agent-1", core.KindServiceRequest, nil))
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestBase_SendMessage(t *testing.T) {
	b := NewBase("agent-1", "Agent One", "", nil)

	msg := b.SendMessage("peer", core.KindServiceRequest, map[string]any{core.FieldService: "soda"})

	assert.Equal(t, "agent-1", msg.SenderID)
	assert.Equal(t, "peer", msg.RecipientID)
	assert.Equal(t, "soda", msg.Service())
	assert.NotEmpty(t, msg.ID)
}

func TestBase_Lifecycle(t *testing.T) {
	b := NewBase("agent-1", "Agent One", "", nil)

	assert.NoError(t, b.Init(context.Background()))
	assert.NoError(t, b.Shutdown(context.Background()))
}
