package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := New("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
	assert.Equal(t, time.Second, c.Backoff())

	_, err = c.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestNew_OptionValidation(t *testing.T) {
	_, err := New("nats://localhost:4222", WithTimeout(-time.Second))
	assert.Error(t, err)

	_, err = New("nats://localhost:4222", WithCircuitThreshold(0))
	assert.Error(t, err)

	_, err = New("nats://localhost:4222", WithLogger(nil))
	assert.Error(t, err)
}

func TestRecordFailure_OpensCircuitAtThreshold(t *testing.T) {
	c, err := New("nats://localhost:4222", WithCircuitThreshold(3))
	require.NoError(t, err)

	c.recordFailure()
	c.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, c.Status())

	c.recordFailure()
	assert.Equal(t, StatusCircuitOpen, c.Status())
	assert.Equal(t, int32(3), c.Failures())
	assert.Equal(t, 2*time.Second, c.Backoff())

	// An open circuit refuses connect attempts outright.
	assert.ErrorIs(t, c.Connect(context.Background()), ErrCircuitOpen)
}

func TestRecordFailure_BackoffCapped(t *testing.T) {
	c, err := New("nats://localhost:4222", WithCircuitThreshold(1))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.recordFailure()
	}
	assert.Equal(t, time.Minute, c.Backoff())
}

func TestResetCircuit_RestoresDefaults(t *testing.T) {
	c, err := New("nats://localhost:4222", WithCircuitThreshold(1))
	require.NoError(t, err)

	c.recordFailure()
	require.Equal(t, StatusCircuitOpen, c.Status())

	c.resetCircuit()
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.Equal(t, time.Second, c.Backoff())
}

func TestWaitForConnection_TimesOut(t *testing.T) {
	c, err := New("nats://localhost:4222")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, c.WaitForConnection(ctx))
}

func TestClose_BeforeConnectIsNoop(t *testing.T) {
	c, err := New("nats://localhost:4222")
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
}

func TestHealthChangeCallback(t *testing.T) {
	var states []bool
	c, err := New("nats://localhost:4222",
		WithHealthChange(func(healthy bool) { states = append(states, healthy) }))
	require.NoError(t, err)

	c.notifyHealth(true)
	c.handleDisconnect(nil, nil)
	c.handleReconnect(nil)

	assert.Equal(t, []bool{true, false, true}, states)
	assert.Equal(t, StatusConnected, c.Status())
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(42).String())
}
