package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentpay/core"
	"github.com/hupe1980/agentpay/logging"
)

// Engine state.
const (
	stateIdle = iota
	stateRunning
	stateStopped
)

var (
	// ErrDuplicateAgent is returned when registering an agent whose ID is
	// already taken.
	ErrDuplicateAgent = errors.New("engine: agent already registered")
	// ErrQueueFull is returned when a message cannot be enqueued within the
	// configured timeout.
	ErrQueueFull = errors.New("engine: queue full")
	// ErrNotRunning is returned when enqueuing after shutdown.
	ErrNotRunning = errors.New("engine: not running")
	// ErrAlreadyRunning is returned when starting an engine twice.
	ErrAlreadyRunning = errors.New("engine: already running")
)

// Config holds tunables for the routing loop.
type Config struct {
	// QueueSize bounds the message queue.
	QueueSize int
	// PollInterval is the idle tick of the routing loop.
	PollInterval time.Duration
	// EnqueueTimeout bounds how long Enqueue blocks on a full queue.
	EnqueueTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:      100,
		PollInterval:   time.Second,
		EnqueueTimeout: 5 * time.Second,
	}
}

// Options configures an Engine.
type Options struct {
	Config Config
	Logger logging.Logger
}

// Engine routes messages between registered agents. Messages are processed
// in FIFO order by a single loop; a handler's response is re-enqueued so the
// conversation continues until a handler returns nil.
type Engine struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	state  int

	queue    chan core.Message
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	hooksRun bool

	cfg    Config
	logger logging.Logger
}

// New creates an engine with the given options.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.QueueSize <= 0 {
		opts.Config.QueueSize = DefaultConfig().QueueSize
	}
	if opts.Config.PollInterval <= 0 {
		opts.Config.PollInterval = DefaultConfig().PollInterval
	}
	if opts.Config.EnqueueTimeout <= 0 {
		opts.Config.EnqueueTimeout = DefaultConfig().EnqueueTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{
		agents: make(map[string]core.Agent),
		queue:  make(chan core.Message, opts.Config.QueueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cfg:    opts.Config,
		logger: opts.Logger,
	}
}

// Register adds an agent to the routing table. IDs must be unique.
func (e *Engine) Register(agent core.Agent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.agents[agent.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, agent.ID())
	}

	e.agents[agent.ID()] = agent
	e.logger.Info("agent registered id=%s name=%s", agent.ID(), agent.Name())

	return nil
}

// Agent returns the registered agent with the given ID.
func (e *Engine) Agent(id string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agent, ok := e.agents[id]

	return agent, ok
}

// Agents returns all registered agents.
func (e *Engine) Agents() []core.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agents := make([]core.Agent, 0, len(e.agents))
	for _, a := range e.agents {
		agents = append(agents, a)
	}

	return agents
}

// Enqueue submits a message for routing. It blocks until the message is
// accepted, the context is canceled, the enqueue timeout elapses, or the
// engine stops.
func (e *Engine) Enqueue(ctx context.Context, msg core.Message) error {
	e.mu.RLock()
	stopped := e.state == stateStopped
	e.mu.RUnlock()

	if stopped {
		return ErrNotRunning
	}

	select {
	case e.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stop:
		return ErrNotRunning
	case <-time.After(e.cfg.EnqueueTimeout):
		return fmt.Errorf("%w: dropping %s from %s", ErrQueueFull, msg.Kind, msg.SenderID)
	}
}

// Start initializes all registered agents and runs the routing loop on the
// calling goroutine until the context is canceled or Shutdown is called.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.begin(ctx); err != nil {
		return err
	}

	e.loop(ctx)

	return nil
}

// StartBackground initializes all registered agents and runs the routing
// loop on a new goroutine.
func (e *Engine) StartBackground(ctx context.Context) error {
	if err := e.begin(ctx); err != nil {
		return err
	}

	go e.loop(ctx)

	return nil
}

func (e *Engine) begin(ctx context.Context) error {
	e.mu.Lock()

	if e.state != stateIdle {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}

	e.state = stateRunning
	agents := make([]core.Agent, 0, len(e.agents))
	for _, a := range e.agents {
		agents = append(agents, a)
	}

	e.mu.Unlock()

	for _, a := range agents {
		if err := a.Init(ctx); err != nil {
			e.mu.Lock()
			e.state = stateIdle
			e.mu.Unlock()

			return fmt.Errorf("init agent %s: %w", a.ID(), err)
		}
	}

	e.logger.Info("engine started agents=%d", len(agents))

	return nil
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine loop canceled: %v", ctx.Err())
			e.mu.Lock()
			e.state = stateStopped
			e.mu.Unlock()
			// Fail pending and future Enqueue calls fast; nothing routes
			// after this point.
			e.stopOnce.Do(func() { close(e.stop) })
			return
		case <-e.stop:
			e.drain(ctx)
			return
		case msg := <-e.queue:
			e.dispatch(ctx, msg)
		case <-ticker.C:
			// Idle tick keeps the loop responsive to cancellation.
		}
	}
}

// drain routes any messages already queued at shutdown time.
func (e *Engine) drain(ctx context.Context) {
	for {
		select {
		case msg := <-e.queue:
			e.dispatch(ctx, msg)
		default:
			return
		}
	}
}

// dispatch delivers one message to its recipient and re-enqueues the
// handler's response, if any. A failing or panicking handler never takes
// down the loop.
func (e *Engine) dispatch(ctx context.Context, msg core.Message) {
	recipient, ok := e.Agent(msg.RecipientID)
	if !ok {
		e.logger.Warn("dropping message for unknown recipient id=%s kind=%s", msg.RecipientID, msg.Kind)
		return
	}

	e.logger.Info("routing message kind=%s sender=%s recipient=%s", msg.Kind, msg.SenderID, msg.RecipientID)

	resp, err := e.invoke(ctx, recipient, msg)
	if err != nil {
		e.logger.Error("handler failed agent=%s kind=%s: %v", msg.RecipientID, msg.Kind, err)
		return
	}

	if resp == nil {
		return
	}

	// During drain the stop channel is already closed, so the queue send
	// gets first preference; responses drop only when the queue is full.
	select {
	case e.queue <- *resp:
		return
	default:
	}

	select {
	case e.queue <- *resp:
	case <-ctx.Done():
		e.logger.Warn("dropping response on canceled context kind=%s", resp.Kind)
	case <-e.stop:
		e.logger.Warn("dropping response on stopped engine kind=%s", resp.Kind)
	}
}

func (e *Engine) invoke(ctx context.Context, agent core.Agent, msg core.Message) (resp *core.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()

	return agent.HandleMessage(ctx, msg)
}

// Shutdown stops the routing loop, waits for it to finish and runs the
// agents' shutdown hooks. Only the first call runs the hooks; the context
// bounds how long to wait for the loop. Shutdown still runs the hooks when
// the loop already exited through a canceled start context.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()

	if e.state == stateIdle || e.hooksRun {
		e.mu.Unlock()
		return nil
	}

	e.state = stateStopped
	e.hooksRun = true
	e.mu.Unlock()

	e.stopOnce.Do(func() { close(e.stop) })

	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error

	for _, a := range e.Agents() {
		if err := a.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown agent %s: %w", a.ID(), err))
		}
	}

	e.logger.Info("engine stopped")

	return errors.Join(errs...)
}

// QueueLen reports how many messages are waiting for dispatch.
func (e *Engine) QueueLen() int {
	return len(e.queue)
}
