package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpay/agent"
	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/payment"
	"github.com/hupe1980/agentpay/policy"
)

// testAgent records received messages and replies through a configurable
// handler.
type testAgent struct {
	agent.Base

	mu       sync.Mutex
	received []core.Message

	shutdownCalls int
	shutdownErr   error
}

func newTestAgent(id string, handler core.HandlerFunc) *testAgent {
	a := &testAgent{Base: agent.NewBase(id, id, "test agent", nil)}

	wrapped := func(ctx context.Context, msg core.Message) (*core.Message, error) {
		a.mu.Lock()
		a.received = append(a.received, msg)
		a.mu.Unlock()

		if handler == nil {
			return nil, nil
		}
		return handler(ctx, msg)
	}

	a.RegisterHandler(core.KindServiceRequest, wrapped)
	a.RegisterHandler(core.KindServiceDelivered, wrapped)

	return a
}

func (a *testAgent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdownCalls++
	return a.shutdownErr
}

func (a *testAgent) messages() []core.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.Message, len(a.received))
	copy(out, a.received)
	return out
}

func fastConfig() Config {
	return Config{
		QueueSize:      32,
		PollInterval:   10 * time.Millisecond,
		EnqueueTimeout: time.Second,
	}
}

func newRunningEngine(t *testing.T) (*Engine, context.Context) {
	t.Helper()

	e := New(func(o *Options) { o.Config = fastConfig() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	t.Cleanup(func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Second)
		defer cancelShutdown()
		_ = e.Shutdown(shutdownCtx)
	})

	return e, ctx
}

func TestEngine_RegisterDuplicate(t *testing.T) {
	e := New()

	require.NoError(t, e.Register(newTestAgent("a", nil)))

	err := e.Register(newTestAgent("a", nil))
	assert.ErrorIs(t, err, ErrDuplicateAgent)
}

func TestEngine_StartTwice(t *testing.T) {
	e, ctx := newRunningEngine(t)

	require.NoError(t, e.StartBackground(ctx))
	assert.ErrorIs(t, e.StartBackground(ctx), ErrAlreadyRunning)
}

func TestEngine_RoutesInOrder(t *testing.T) {
	e, ctx := newRunningEngine(t)

	sink := newTestAgent("sink", nil)
	require.NoError(t, e.Register(sink))
	require.NoError(t, e.StartBackground(ctx))

	for i := 0; i < 5; i++ {
		msg := core.NewMessage("src", "sink", core.KindServiceRequest, map[string]any{
			core.FieldService: "soda",
			"seq":             i,
		})
		require.NoError(t, e.Enqueue(ctx, msg))
	}

	assert.Eventually(t, func() bool {
		return len(sink.messages()) == 5
	}, 2*time.Second, 10*time.Millisecond)

	for i, msg := range sink.messages() {
		assert.Equal(t, i, msg.Payload["seq"])
	}
}

func TestEngine_UnknownRecipientDropped(t *testing.T) {
	e, ctx := newRunningEngine(t)

	sink := newTestAgent("sink", nil)
	require.NoError(t, e.Register(sink))
	require.NoError(t, e.StartBackground(ctx))

	require.NoError(t, e.Enqueue(ctx, core.NewMessage("src", "nobody", core.KindServiceRequest, nil)))
	require.NoError(t, e.Enqueue(ctx, core.NewMessage("src", "sink", core.KindServiceRequest, nil)))

	assert.Eventually(t, func() bool {
		return len(sink.messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_HandlerErrorIsolated(t *testing.T) {
	e, ctx := newRunningEngine(t)

	failing := newTestAgent("failing", func(ctx context.Context, msg core.Message) (*core.Message, error) {
		return nil, errors.New("boom")
	})
	sink := newTestAgent("sink", nil)

	require.NoError(t, e.Register(failing))
	require.NoError(t, e.Register(sink))
	require.NoError(t, e.StartBackground(ctx))

	require.NoError(t, e.Enqueue(ctx, core.NewMessage("src", "failing", core.KindServiceRequest, nil)))
	require.NoError(t, e.Enqueue(ctx, core.NewMessage("src", "sink", core.KindServiceRequest, nil)))

	assert.Eventually(t, func() bool {
		return len(sink.messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_HandlerPanicIsolated(t *testing.T) {
	e, ctx := newRunningEngine(t)

	panicking := newTestAgent("panicking", func(ctx context.Context, msg core.Message) (*core.Message, error) {
		panic("handler exploded")
	})
	sink := newTestAgent("sink", nil)

	require.NoError(t, e.Register(panicking))
	require.NoError(t, e.Register(sink))
	require.NoError(t, e.StartBackground(ctx))

	require.NoError(t, e.Enqueue(ctx, core.NewMessage("src", "panicking", core.KindServiceRequest, nil)))
	require.NoError(t, e.Enqueue(ctx, core.NewMessage("src", "sink", core.KindServiceRequest, nil)))

	assert.Eventually(t, func() bool {
		return len(sink.messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_ResponsesAreReEnqueued(t *testing.T) {
	e, ctx := newRunningEngine(t)

	responder := newTestAgent("responder", func(ctx context.Context, msg core.Message) (*core.Message, error) {
		resp := msg.Reply(core.KindServiceDelivered, map[string]any{core.FieldStatus: "ok"})
		return &resp, nil
	})
	requester := newTestAgent("requester", nil)

	require.NoError(t, e.Register(responder))
	require.NoError(t, e.Register(requester))
	require.NoError(t, e.StartBackground(ctx))

	require.NoError(t, e.Enqueue(ctx, core.NewMessage("requester", "responder", core.KindServiceRequest, nil)))

	assert.Eventually(t, func() bool {
		msgs := requester.messages()
		return len(msgs) == 1 && msgs[0].Kind == core.KindServiceDelivered
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_EnqueueAfterShutdown(t *testing.T) {
	e := New(func(o *Options) { o.Config = fastConfig() })

	ctx := context.Background()
	require.NoError(t, e.StartBackground(ctx))
	require.NoError(t, e.Shutdown(ctx))

	err := e.Enqueue(ctx, core.NewMessage("a", "b", core.KindServiceRequest, nil))
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestEngine_ShutdownRunsAgentHooks(t *testing.T) {
	e := New(func(o *Options) { o.Config = fastConfig() })

	a := newTestAgent("a", nil)
	b := newTestAgent("b", nil)
	b.shutdownErr = errors.New("flush failed")

	require.NoError(t, e.Register(a))
	require.NoError(t, e.Register(b))

	ctx := context.Background()
	require.NoError(t, e.StartBackground(ctx))

	err := e.Shutdown(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")

	assert.Equal(t, 1, a.shutdownCalls)
	assert.Equal(t, 1, b.shutdownCalls)
}

func TestEngine_CanceledContextStopsEnqueue(t *testing.T) {
	e := New(func(o *Options) { o.Config = fastConfig() })

	require.NoError(t, e.Register(newTestAgent("sink", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.StartBackground(ctx))

	cancel()

	assert.Eventually(t, func() bool {
		err := e.Enqueue(context.Background(), core.NewMessage("src", "sink", core.KindServiceRequest, nil))
		return errors.Is(err, ErrNotRunning)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_CanceledContextStillRunsShutdownHooks(t *testing.T) {
	e := New(func(o *Options) { o.Config = fastConfig() })

	a := newTestAgent("a", nil)
	require.NoError(t, e.Register(a))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.StartBackground(ctx))
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Second)
	defer cancelShutdown()

	require.NoError(t, e.Shutdown(shutdownCtx))
	assert.Equal(t, 1, a.shutdownCalls)
}

func TestEngine_ResponseDuringDrainStaysQueued(t *testing.T) {
	e := New(func(o *Options) { o.Config = fastConfig() })

	responder := newTestAgent("responder", func(ctx context.Context, msg core.Message) (*core.Message, error) {
		resp := msg.Reply(core.KindServiceDelivered, map[string]any{core.FieldStatus: "ok"})
		return &resp, nil
	})
	require.NoError(t, e.Register(responder))

	// Put the engine in the draining condition: stop signaled, queue open.
	e.stopOnce.Do(func() { close(e.stop) })

	e.dispatch(context.Background(), core.NewMessage("requester", "responder", core.KindServiceRequest, nil))

	assert.Equal(t, 1, e.QueueLen())
}

func newSodaScenario(t *testing.T, budget float64, verifier core.PaymentVerifier) (*Engine, *agent.Provider, *agent.Requester, context.Context) {
	t.Helper()

	e, ctx := newRunningEngine(t)

	provider := agent.NewProvider("fridge", "Smart Fridge", verifier, func(o *agent.ProviderOptions) {
		o.Inventory = map[string]int{"soda": 2}
		o.Prices = map[string]float64{"soda": 0.1}
		o.PayoutAddress = "0xseller"
	})

	wallet := payment.NewSimClient(func(o *payment.SimClientOptions) {
		o.PrivateKey = "0xbuyerkey"
	})

	requester := agent.NewRequester("hub", "Home Hub", policy.Threshold(budget), wallet)

	require.NoError(t, e.Register(provider))
	require.NoError(t, e.Register(requester))
	require.NoError(t, e.StartBackground(ctx))

	return e, provider, requester, ctx
}

func TestEngine_EndToEndPurchase(t *testing.T) {
	e, provider, requester, ctx := newSodaScenario(t, policy.DefaultThreshold, payment.NewSimVerifier())

	require.NoError(t, e.Enqueue(ctx, requester.RequestService("fridge", "soda")))

	assert.Eventually(t, func() bool {
		return requester.Tracker().Len() == 0 && e.QueueLen() == 0
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, provider.InventoryCount("soda"))
	assert.Equal(t, 0, provider.Tracker().Len())
}

func TestEngine_EndToEndDecline(t *testing.T) {
	e, provider, requester, ctx := newSodaScenario(t, 0.05, payment.NewSimVerifier())

	require.NoError(t, e.Enqueue(ctx, requester.RequestService("fridge", "soda")))

	assert.Eventually(t, func() bool {
		return requester.Tracker().Len() == 0 && e.QueueLen() == 0
	}, 3*time.Second, 10*time.Millisecond)

	// Declined purchases never touch the inventory.
	assert.Equal(t, 2, provider.InventoryCount("soda"))
}

// rejectingVerifier fails every proof.
type rejectingVerifier struct{}

func (rejectingVerifier) VerifyPayment(ctx context.Context, proof string) (bool, error) {
	return false, nil
}

func TestEngine_EndToEndBadProof(t *testing.T) {
	e, provider, requester, ctx := newSodaScenario(t, policy.DefaultThreshold, rejectingVerifier{})

	require.NoError(t, e.Enqueue(ctx, requester.RequestService("fridge", "soda")))

	assert.Eventually(t, func() bool {
		return requester.Tracker().Len() == 0 && e.QueueLen() == 0
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, provider.InventoryCount("soda"))
}
