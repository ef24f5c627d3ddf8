package telldus

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/telldus/wire"
)

func TestNewCircuitBreakerConfig(t *testing.T) {
	newBreaker := NewCircuitBreakerConfig(1, time.Minute, time.Minute)
	cb := newBreaker("127.0.0.1:50800")
	require.NotNil(t, cb)

	// Should start in closed state
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	reply, err := cb.Execute(func() (*wire.Buffer, error) {
		return wire.NewBufferString("i0s"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "i0s", string(reply.Unread()))
}

func TestCircuitBreaker_Trips(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("127.0.0.1:50800")
	failure := errors.New("failure")

	// Fewer than 3 requests never trip
	for range 2 {
		_, err := cb.Execute(func() (*wire.Buffer, error) { return nil, failure })
		require.ErrorIs(t, err, failure)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	}

	_, err := cb.Execute(func() (*wire.Buffer, error) { return nil, failure })
	require.ErrorIs(t, err, failure)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err = cb.Execute(func() (*wire.Buffer, error) {
		t.Fatal("should not be called while open")
		return nil, nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreaker_RatioBelowThreshold(t *testing.T) {
	cb := NewCircuitBreakerConfig(1, time.Minute, time.Minute)("127.0.0.1:50800")
	failure := errors.New("failure")

	ok := func() (*wire.Buffer, error) { return wire.NewBuffer(0), nil }
	fail := func() (*wire.Buffer, error) { return nil, failure }

	for _, fn := range []func() (*wire.Buffer, error){ok, ok, fail, ok, fail} {
		_, _ = cb.Execute(fn)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
