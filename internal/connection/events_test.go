package connection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_OrderAndRemoval(t *testing.T) {
	e := NewEmitter(0, nil)

	var calls []string
	idA, err := e.On(EventConnected, func(Event, *StreamConnection) { calls = append(calls, "a") })
	require.NoError(t, err)
	_, err = e.On(EventConnected, func(Event, *StreamConnection) { calls = append(calls, "b") })
	require.NoError(t, err)
	_, err = e.On(EventDisposed, func(Event, *StreamConnection) { calls = append(calls, "disposed") })
	require.NoError(t, err)

	e.Emit(EventConnected, nil)
	assert.Equal(t, []string{"a", "b"}, calls)

	assert.True(t, e.RemoveListener(EventConnected, idA))
	assert.False(t, e.RemoveListener(EventConnected, idA))

	calls = nil
	e.Emit(EventConnected, nil)
	assert.Equal(t, []string{"b"}, calls)
}

func TestEmitter_MaxListeners(t *testing.T) {
	e := NewEmitter(2, nil)
	noop := func(Event, *StreamConnection) {}

	for i := 0; i < 2; i++ {
		_, err := e.On(EventReconnected, noop)
		require.NoError(t, err)
	}

	id, err := e.On(EventReconnected, noop)
	assert.True(t, errors.Is(err, ErrTooManyListeners))
	assert.Zero(t, id)

	// Limit is per event
	_, err = e.On(EventDisconnected, noop)
	assert.NoError(t, err)

	_, err = e.On(EventDisconnected, nil)
	assert.Error(t, err)
}

func TestEmitter_PanickingListener(t *testing.T) {
	e := NewEmitter(0, nil)

	reached := false
	e.On(EventDisposed, func(Event, *StreamConnection) { panic("boom") })
	e.On(EventDisposed, func(Event, *StreamConnection) { reached = true })

	assert.NotPanics(t, func() { e.Emit(EventDisposed, nil) })
	assert.True(t, reached)
}

func TestEmitter_RemoveDuringEmit(t *testing.T) {
	e := NewEmitter(0, nil)

	var id ListenerID
	count := 0
	id, _ = e.On(EventConnecting, func(Event, *StreamConnection) {
		count++
		e.RemoveListener(EventConnecting, id)
	})

	e.Emit(EventConnecting, nil)
	e.Emit(EventConnecting, nil)
	assert.Equal(t, 1, count)
}
