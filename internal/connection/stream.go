package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

// StreamConnection is one logical upstream link. It owns a state machine,
// a bounded inbound queue drained by a dispatcher goroutine and, while
// connecting, a supervisor goroutine that performs the connect cycles.
type StreamConnection struct {
	id       string
	cfg      *Config
	session  Session
	factory  TransportFactory
	opts     Options
	policy   *ReconnectPolicy
	clock    clock.Clock
	logger   *slog.Logger
	observer Observer
	emitter  *Emitter
	queue    *Queue[Message]

	dropLimiter *rate.Limiter

	mu          sync.Mutex
	state       State
	changed     chan struct{} // closed and replaced on every transition
	transport   Transport     // live transport of the current cycle
	runCancel   context.CancelFunc
	reconnected bool // current cycle follows Reconnecting

	prepared     chan struct{}
	preparedOnce sync.Once
	closed       chan struct{}
	closedOnce   sync.Once
	dispatchDone chan struct{}

	seq            atomic.Uint64
	received       atomic.Int64
	dropped        atomic.Int64
	reconnects     atomic.Int64
	protocolErrors atomic.Int64
	handlerErrors  atomic.Int64
}

// NewStreamConnection creates a connection in StateInitial and starts its
// dispatcher. Call Dispose to release it.
func NewStreamConnection(cfg *Config, session Session, factory TransportFactory, opts Options) (*StreamConnection, error) {
	if cfg == nil {
		return nil, &ConfigError{Field: "config", Reason: "is required"}
	}
	if session == nil {
		return nil, &ConfigError{Field: "session", Reason: "is required"}
	}
	if factory == nil {
		factory = DefaultTransportFactory(TransportOptions{Logger: opts.Logger})
	}
	opts = opts.withDefaults()

	id := uuid.NewString()
	logger := opts.Logger.With("conn_id", id)

	c := &StreamConnection{
		id:           id,
		cfg:          cfg,
		session:      session,
		factory:      factory,
		opts:         opts,
		policy:       opts.policy(),
		clock:        opts.Clock,
		logger:       logger,
		observer:     opts.Observer,
		emitter:      NewEmitter(opts.MaxListeners, logger),
		queue:        NewQueue[Message](opts.QueueSize),
		dropLimiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		state:        StateInitial,
		changed:      make(chan struct{}),
		prepared:     make(chan struct{}),
		closed:       make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}

	go c.dispatchLoop()

	return c, nil
}

// ID returns the connection's unique id.
func (c *StreamConnection) ID() string { return c.id }

// Config returns the connection configuration.
func (c *StreamConnection) Config() *Config { return c.cfg }

// Endpoint returns the dial address the cursor points at.
func (c *StreamConnection) Endpoint() string { return c.cfg.URL() }

// State returns the current state.
func (c *StreamConnection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Prepared is closed when the connection first reaches Ready, or on
// Dispose.
func (c *StreamConnection) Prepared() <-chan struct{} { return c.prepared }

// Closed is closed on Dispose.
func (c *StreamConnection) Closed() <-chan struct{} { return c.closed }

// Done is closed once the dispatcher has delivered every queued message
// after Dispose. The handler is never called after Done is closed.
func (c *StreamConnection) Done() <-chan struct{} { return c.dispatchDone }

// On registers a lifecycle listener.
func (c *StreamConnection) On(event Event, fn Listener) (ListenerID, error) {
	return c.emitter.On(event, fn)
}

// RemoveListener unregisters a lifecycle listener.
func (c *StreamConnection) RemoveListener(event Event, id ListenerID) bool {
	return c.emitter.RemoveListener(event, id)
}

// CanReconnect reports whether a failed cycle may be retried.
func (c *StreamConnection) CanReconnect() bool {
	return c.opts.AutoReconnect && c.policy.Allows(c.cfg.Len())
}

// Stats returns a snapshot of connection counters.
func (c *StreamConnection) Stats() Stats {
	return Stats{
		State:          c.State(),
		Endpoint:       c.cfg.URL(),
		Received:       c.received.Load(),
		Dropped:        c.dropped.Load(),
		Reconnects:     c.reconnects.Load(),
		ProtocolErrors: c.protocolErrors.Load(),
		HandlerErrors:  c.handlerErrors.Load(),
		Queue:          c.queue.Stats(),
	}
}

// Connect starts connecting from Initial or Disconnected. It returns
// immediately; use WaitReady or Prepared to wait for the handshake.
// Cancelling ctx has the same effect as Disconnect.
func (c *StreamConnection) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateDisposed:
		c.mu.Unlock()
		return ErrDisposed
	case StateInitial, StateDisconnected:
	default:
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("connect ignored", "state", state)
		return nil
	}

	from, ok := c.transitionLocked(triggerConnect)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("connect from %s refused", from)
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.runCancel = cancel
	c.reconnected = false
	c.policy.Reset()
	c.cfg.Reset()
	c.mu.Unlock()

	c.emit(StateConnecting)

	go c.run(runCtx, cancel)

	return nil
}

// Disconnect closes the link without disposing the connection. It is a
// no-op unless the connection is connecting, connected or waiting to
// reconnect.
func (c *StreamConnection) Disconnect() {
	c.mu.Lock()
	from := c.state
	switch from {
	case StateConnecting, StateConnected, StateReady, StateReconnecting:
	default:
		c.mu.Unlock()
		c.logger.Debug("disconnect ignored", "state", from)
		return
	}
	if _, ok := c.transitionLocked(triggerDisconnect); !ok {
		c.mu.Unlock()
		return
	}
	tr := c.transport
	cancel := c.runCancel
	c.mu.Unlock()

	c.emit(StateDisconnecting)

	if err := c.teardown(from, tr, cancel); err != nil {
		c.logger.Debug("disconnect teardown", "error", err)
	}
}

// Dispose permanently shuts the connection down. It may be called from any
// state and more than once.
func (c *StreamConnection) Dispose() {
	c.mu.Lock()
	from := c.state
	if from == StateDisposed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.transitionLocked(triggerDispose); !ok {
		c.mu.Unlock()
		return
	}
	tr := c.transport
	c.transport = nil
	cancel := c.runCancel
	c.mu.Unlock()

	if err := c.teardown(from, tr, cancel); err != nil {
		c.logger.Debug("dispose teardown", "error", err)
	}

	c.queue.Close()
	c.preparedOnce.Do(func() { close(c.prepared) })
	c.closedOnce.Do(func() { close(c.closed) })

	c.logger.Info("connection disposed", "from", from)
	c.emit(StateDisposed)
}

// teardown sends the close message when the link is up, stops the
// supervisor and closes the transport. Errors are collected, not returned
// to callers.
func (c *StreamConnection) teardown(from State, tr Transport, cancel context.CancelFunc) error {
	var errs error
	if tr != nil && (from == StateConnected || from == StateReady) {
		msg, err := c.session.CloseMessage()
		errs = multierr.Append(errs, err)
		if err == nil && len(msg) > 0 {
			errs = multierr.Append(errs, tr.Send(msg))
		}
	}
	if cancel != nil {
		cancel()
	}
	if tr != nil {
		errs = multierr.Append(errs, tr.Close())
	}
	return errs
}

// WaitReady blocks until the connection is Ready. It fails when the
// connection is disposed, ends up Disconnected, or ctx is done.
func (c *StreamConnection) WaitReady(ctx context.Context) error {
	for {
		c.mu.Lock()
		state := c.state
		changed := c.changed
		c.mu.Unlock()

		switch state {
		case StateReady:
			return nil
		case StateDisposed:
			return ErrDisposed
		case StateDisconnected:
			return ErrNotConnected
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send writes one frame to the live transport. It never waits for the
// inbound queue and is never retried.
func (c *StreamConnection) Send(data []byte) error {
	c.mu.Lock()
	state := c.state
	tr := c.transport
	c.mu.Unlock()

	if tr == nil || (state != StateConnected && state != StateReady) {
		return &SendError{State: state, Err: ErrNotConnected}
	}
	if err := tr.Send(data); err != nil {
		return &SendError{State: state, Err: err}
	}
	return nil
}

// SendJSON marshals v and sends it as one frame.
func (c *StreamConnection) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return c.Send(data)
}

// transitionLocked applies t from the current state. Refused transitions
// leave the state untouched. Must be called with c.mu held.
func (c *StreamConnection) transitionLocked(t trigger) (State, bool) {
	from := c.state
	to, ok := next(from, t)
	if !ok {
		c.logger.Error("refused state transition", "state", from, "trigger", t)
		c.observer.ObserveRefusedTransition(from)
		return from, false
	}

	c.state = to
	close(c.changed)
	c.changed = make(chan struct{})
	c.observer.ObserveTransition(from, to)

	c.logger.Debug("state transition", "from", from, "to", to, "trigger", t)
	return from, true
}

// transition applies t only if the connection is still in expected.
func (c *StreamConnection) transition(expected State, t trigger) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != expected {
		return false
	}
	_, ok := c.transitionLocked(t)
	return ok
}

// emit notifies listeners that state was entered.
func (c *StreamConnection) emit(state State) {
	if ev, ok := eventFor(state); ok {
		c.emitter.Emit(ev, c)
	}
}

// run is the supervisor: one connect cycle per iteration until the link is
// given up, disconnected or disposed.
func (c *StreamConnection) run(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	for {
		err := c.connectCycle(ctx)
		if ctx.Err() != nil || c.stopping() {
			c.finishRun()
			return
		}

		attempts := c.policy.Fail()
		retry := c.CanReconnect()

		c.mu.Lock()
		if c.state == StateDisposed || c.state == StateDisconnecting {
			c.mu.Unlock()
			c.finishRun()
			return
		}
		c.transport = nil
		t := triggerClosedFinal
		if retry {
			t = triggerClosedRetry
		}
		from, ok := c.transitionLocked(t)
		if ok && retry {
			c.reconnected = true
		}
		c.mu.Unlock()

		if !ok {
			return
		}

		if !retry {
			c.logger.Warn("connection closed, giving up",
				"endpoint", c.cfg.URL(),
				"attempts", attempts,
				"error", err,
			)
			c.emit(StateDisconnected)
			return
		}

		c.reconnects.Add(1)
		c.observer.ObserveReconnect()
		c.cfg.Advance()
		wait := c.policy.NextDelay() + c.cfg.ReconnectDelay()

		c.logger.Info("connection closed, reconnecting",
			"from", from,
			"next_endpoint", c.cfg.URL(),
			"attempts", attempts,
			"wait", wait,
			"error", err,
		)

		timer := c.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.finishRun()
			return
		case <-timer.C:
		}

		if !c.transition(StateReconnecting, triggerRetry) {
			c.finishRun()
			return
		}
		c.emit(StateConnecting)
	}
}

// stopping reports whether Disconnect or Dispose has taken over.
func (c *StreamConnection) stopping() bool {
	state := c.State()
	return state == StateDisposed || state == StateDisconnecting
}

// finishRun settles the state after the run context ends. Disconnect leaves
// the connection in Disconnecting; a cancelled Connect context may leave it
// anywhere in the cycle.
func (c *StreamConnection) finishRun() {
	c.mu.Lock()
	switch c.state {
	case StateDisposed, StateDisconnected, StateInitial:
		c.mu.Unlock()
		return
	}

	from := c.state
	tr := c.transport
	c.transport = nil
	if from != StateDisconnecting {
		if _, ok := c.transitionLocked(triggerDisconnect); !ok {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.emit(StateDisconnecting)
		if err := c.teardown(from, tr, nil); err != nil {
			c.logger.Debug("disconnect teardown", "error", err)
		}

		c.mu.Lock()
	}

	// Dispose may have won while the lock was released
	if c.state != StateDisconnecting {
		c.mu.Unlock()
		return
	}
	c.transitionLocked(triggerClosedFinal)
	c.mu.Unlock()

	c.logger.Info("connection disconnected")
	c.emit(StateDisconnected)
}

// connectCycle opens one transport, performs the login handshake and then
// waits for the transport to close. It returns why the cycle ended.
func (c *StreamConnection) connectCycle(ctx context.Context) error {
	tr, err := c.factory(c.cfg.Transport())
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	target := c.cfg.Target()
	cy := newCycle(c)

	c.logger.Info("connecting", "endpoint", target.URL, "proxy", target.Proxy)

	if err := tr.Open(ctx, target, cy); err != nil {
		c.logger.Warn("open failed", "endpoint", target.URL, "error", err)
		return fmt.Errorf("open %s: %w", target.URL, err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		tr.Close()
		return ErrNotConnected
	}
	c.transitionLocked(triggerOpened)
	c.transport = tr
	c.mu.Unlock()

	login, err := c.session.LoginMessage()
	if err == nil {
		err = tr.Send(login)
	}
	if err != nil {
		tr.Close()
		c.awaitClose(ctx, cy)
		return fmt.Errorf("send login: %w", err)
	}
	if rt, ok := c.session.(RequestTracker); ok {
		c.logger.Debug("login sent", "endpoint", target.URL, "request_id", rt.RequestID())
	}

	timer := c.clock.Timer(c.opts.LoginTimeout)
	select {
	case <-cy.ready:
		timer.Stop()
	case perr := <-cy.failed:
		timer.Stop()
		c.protocolErrors.Add(1)
		c.observer.ObserveProtocolError()
		c.logger.Warn("handshake failed", "endpoint", target.URL, "error", perr)
		tr.Close()
		c.awaitClose(ctx, cy)
		return perr
	case <-timer.C:
		c.logger.Warn("login acknowledgement timed out",
			"endpoint", target.URL,
			"timeout", c.opts.LoginTimeout,
		)
		tr.Close()
		c.awaitClose(ctx, cy)
		return ErrLoginTimeout
	case <-cy.done:
		timer.Stop()
		return cy.closeErr
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ctx.Err()
	}
	c.transitionLocked(triggerLoginAck)
	reconnected := c.reconnected
	c.reconnected = false
	c.mu.Unlock()

	c.policy.Reset()
	c.cfg.Reset()
	c.preparedOnce.Do(func() { close(c.prepared) })

	c.logger.Info("connection ready", "endpoint", target.URL, "reconnected", reconnected)
	if reconnected {
		c.emitter.Emit(EventReconnected, c)
	} else {
		c.emitter.Emit(EventConnected, c)
	}

	select {
	case <-cy.done:
		return cy.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *StreamConnection) awaitClose(ctx context.Context, cy *cycle) {
	select {
	case <-cy.done:
	case <-ctx.Done():
	}
}

// enqueue assigns the arrival sequence and offers the frame to the
// dispatcher without blocking.
func (c *StreamConnection) enqueue(data []byte, receivedAt time.Time) {
	msg := Message{
		Data:       data,
		ReceivedAt: receivedAt,
		Seq:        c.seq.Add(1),
	}
	c.received.Add(1)
	c.observer.ObserveReceived()

	err := c.queue.Offer(msg)
	switch {
	case err == nil:
		c.observer.ObserveQueueDepth(c.queue.Len())
	case errors.Is(err, ErrQueueFull):
		n := c.dropped.Add(1)
		c.observer.ObserveDropped()
		if c.dropLimiter.Allow() {
			c.logger.Warn("message queue full, dropping message",
				"seq", msg.Seq,
				"dropped_total", n,
				"capacity", c.queue.Cap(),
			)
		}
	}
}

// dispatchLoop drains the queue in order until it is closed and empty.
func (c *StreamConnection) dispatchLoop() {
	defer close(c.dispatchDone)

	for {
		msg, ok := c.queue.Receive()
		if !ok {
			return
		}
		c.observer.ObserveQueueDepth(c.queue.Len())
		c.deliver(msg)
	}
}

func (c *StreamConnection) deliver(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			c.handlerErrors.Add(1)
			c.observer.ObserveHandlerError()
			c.logger.Error("message handler panicked", "seq", msg.Seq, "panic", r)
		}
	}()

	if c.opts.Handler == nil {
		return
	}
	if err := c.opts.Handler(msg); err != nil {
		c.handlerErrors.Add(1)
		c.observer.ObserveHandlerError()
		c.logger.Warn("message handler failed", "seq", msg.Seq, "error", err)
	}
}

// cycle is the transport Handler for one connect cycle. It owns the login
// handshake, so frames are judged and queued in read order on the
// transport's goroutine.
type cycle struct {
	conn *StreamConnection

	// Touched only by the transport read goroutine.
	acked   bool
	failing bool
	pending []byte
	pendAt  time.Time

	ready     chan struct{}
	failed    chan error
	done      chan struct{}
	closeErr  error
	closeOnce sync.Once
}

func newCycle(c *StreamConnection) *cycle {
	return &cycle{
		conn:   c,
		ready:  make(chan struct{}),
		failed: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (cy *cycle) HandleMessage(data []byte, receivedAt time.Time) {
	if cy.acked {
		cy.conn.enqueue(data, receivedAt)
		return
	}
	if cy.failing {
		return
	}

	ok, err := cy.conn.session.LoginAck(data)
	switch {
	case err != nil:
		cy.fail(&ProtocolError{Reason: "login rejected", Err: err})
	case ok:
		cy.acked = true
		if cy.pending != nil {
			cy.conn.enqueue(cy.pending, cy.pendAt)
			cy.pending = nil
		}
		close(cy.ready)
	case cy.pending != nil:
		cy.fail(&ProtocolError{Reason: "unexpected message before login acknowledgement"})
	default:
		cy.pending = data
		cy.pendAt = receivedAt
	}
}

func (cy *cycle) fail(err error) {
	cy.failing = true
	cy.failed <- err
}

func (cy *cycle) HandleClose(err error) {
	cy.closeOnce.Do(func() {
		cy.closeErr = err
		close(cy.done)
	})
}
