package connection

// State is the lifecycle state of a StreamConnection.
type State int

const (
	StateInitial State = iota
	StateConnecting
	StateConnected
	StateReady
	StateDisconnecting
	StateDisconnected
	StateReconnecting
	StateDisposed
)

var stateNames = [...]string{
	StateInitial:       "initial",
	StateConnecting:    "connecting",
	StateConnected:     "connected",
	StateReady:         "ready",
	StateDisconnecting: "disconnecting",
	StateDisconnected:  "disconnected",
	StateReconnecting:  "reconnecting",
	StateDisposed:      "disposed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// trigger is what causes a transition.
type trigger int

const (
	triggerConnect trigger = iota
	triggerOpened
	triggerLoginAck
	triggerDisconnect
	triggerClosedRetry // transport closed, reconnect allowed
	triggerClosedFinal // transport closed, reconnect not allowed
	triggerRetry       // backoff elapsed
	triggerDispose
)

var triggerNames = [...]string{
	triggerConnect:     "connect",
	triggerOpened:      "opened",
	triggerLoginAck:    "login_ack",
	triggerDisconnect:  "disconnect",
	triggerClosedRetry: "closed_retry",
	triggerClosedFinal: "closed_final",
	triggerRetry:       "retry",
	triggerDispose:     "dispose",
}

func (t trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return "unknown"
	}
	return triggerNames[t]
}

type transitionKey struct {
	from State
	on   trigger
}

// transitions is the complete state table. A (state, trigger) pair that is
// not listed is refused.
var transitions = map[transitionKey]State{
	{StateInitial, triggerConnect}:      StateConnecting,
	{StateDisconnected, triggerConnect}: StateConnecting,

	{StateConnecting, triggerOpened}:  StateConnected,
	{StateConnected, triggerLoginAck}: StateReady,

	{StateConnecting, triggerDisconnect}:   StateDisconnecting,
	{StateConnected, triggerDisconnect}:    StateDisconnecting,
	{StateReady, triggerDisconnect}:        StateDisconnecting,
	{StateReconnecting, triggerDisconnect}: StateDisconnecting,

	{StateConnecting, triggerClosedRetry}: StateReconnecting,
	{StateConnected, triggerClosedRetry}:  StateReconnecting,
	{StateReady, triggerClosedRetry}:      StateReconnecting,
	{StateConnecting, triggerClosedFinal}: StateDisconnected,
	{StateConnected, triggerClosedFinal}:  StateDisconnected,
	{StateReady, triggerClosedFinal}:      StateDisconnected,

	{StateReconnecting, triggerRetry}: StateConnecting,

	{StateDisconnecting, triggerClosedFinal}: StateDisconnected,

	{StateInitial, triggerDispose}:       StateDisposed,
	{StateConnecting, triggerDispose}:    StateDisposed,
	{StateConnected, triggerDispose}:     StateDisposed,
	{StateReady, triggerDispose}:         StateDisposed,
	{StateDisconnecting, triggerDispose}: StateDisposed,
	{StateDisconnected, triggerDispose}:  StateDisposed,
	{StateReconnecting, triggerDispose}:  StateDisposed,
}

// next returns the target state for trigger t from s.
func next(s State, t trigger) (State, bool) {
	to, ok := transitions[transitionKey{s, t}]
	return to, ok
}

// eventFor maps an entered state to the lifecycle event it emits. Ready is
// handled separately because it depends on whether a reconnect preceded it.
func eventFor(s State) (Event, bool) {
	switch s {
	case StateConnecting:
		return EventConnecting, true
	case StateDisconnecting:
		return EventDisconnecting, true
	case StateDisconnected:
		return EventDisconnected, true
	case StateDisposed:
		return EventDisposed, true
	}
	return "", false
}
