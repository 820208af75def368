package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStates = []State{
	StateInitial,
	StateConnecting,
	StateConnected,
	StateReady,
	StateDisconnecting,
	StateDisconnected,
	StateReconnecting,
	StateDisposed,
}

var allTriggers = []trigger{
	triggerConnect,
	triggerOpened,
	triggerLoginAck,
	triggerDisconnect,
	triggerClosedRetry,
	triggerClosedFinal,
	triggerRetry,
	triggerDispose,
}

func TestTransitions_DisposeFromEveryState(t *testing.T) {
	for _, s := range allStates {
		to, ok := next(s, triggerDispose)
		if s == StateDisposed {
			assert.False(t, ok, "disposed must be terminal")
			continue
		}
		assert.True(t, ok, "dispose from %s", s)
		assert.Equal(t, StateDisposed, to)
	}
}

func TestTransitions_DisposedIsTerminal(t *testing.T) {
	for _, tr := range allTriggers {
		_, ok := next(StateDisposed, tr)
		assert.False(t, ok, "disposed --%s--> should be refused", tr)
	}
}

func TestTransitions_Table(t *testing.T) {
	tests := []struct {
		from State
		on   trigger
		to   State
	}{
		{StateInitial, triggerConnect, StateConnecting},
		{StateDisconnected, triggerConnect, StateConnecting},
		{StateConnecting, triggerOpened, StateConnected},
		{StateConnected, triggerLoginAck, StateReady},
		{StateReady, triggerDisconnect, StateDisconnecting},
		{StateReconnecting, triggerDisconnect, StateDisconnecting},
		{StateReady, triggerClosedRetry, StateReconnecting},
		{StateReady, triggerClosedFinal, StateDisconnected},
		{StateReconnecting, triggerRetry, StateConnecting},
		{StateDisconnecting, triggerClosedFinal, StateDisconnected},
	}

	for _, tt := range tests {
		to, ok := next(tt.from, tt.on)
		assert.True(t, ok, "%s --%s-->", tt.from, tt.on)
		assert.Equal(t, tt.to, to, "%s --%s-->", tt.from, tt.on)
	}
}

func TestTransitions_Refused(t *testing.T) {
	refused := []transitionKey{
		{StateReady, triggerConnect},
		{StateConnecting, triggerConnect},
		{StateInitial, triggerLoginAck},
		{StateConnecting, triggerLoginAck},
		{StateInitial, triggerDisconnect},
		{StateDisconnected, triggerDisconnect},
		{StateConnected, triggerRetry},
		{StateReconnecting, triggerOpened},
		{StateDisconnecting, triggerClosedRetry},
	}

	for _, k := range refused {
		_, ok := next(k.from, k.on)
		assert.False(t, ok, "%s --%s--> should be refused", k.from, k.on)
	}
}

func TestTransitions_AllStatesReachable(t *testing.T) {
	reached := map[State]bool{StateInitial: true}
	for _, to := range transitions {
		reached[to] = true
	}
	for _, s := range allStates {
		assert.True(t, reached[s], "%s unreachable", s)
	}
}

func TestTransitions_DisconnectedOnlyOnClose(t *testing.T) {
	for k, to := range transitions {
		if to != StateDisconnected {
			continue
		}
		assert.Equal(t, triggerClosedFinal, k.on, "%s --%s--> disconnected", k.from, k.on)
	}
}

func TestTransitions_DisconnectingNeverReconnects(t *testing.T) {
	for _, tr := range allTriggers {
		to, ok := next(StateDisconnecting, tr)
		if ok {
			assert.NotEqual(t, StateReconnecting, to, "disconnecting --%s-->", tr)
			assert.NotEqual(t, StateConnecting, to, "disconnecting --%s-->", tr)
		}
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "disposed", StateDisposed.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.Equal(t, "closed_retry", triggerClosedRetry.String())
}
