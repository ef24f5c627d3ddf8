package telldus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/telldus/internal/testutils"
	"github.com/pior/telldus/wire"
)

func TestCommandChannel_Call(t *testing.T) {
	daemon := testutils.NewDaemon(t)
	daemon.Handle(func(req *wire.Message) []byte {
		assert.Equal(t, FnGetName, req.Function())
		return wire.AppendString(nil, "Kitchen")
	})

	ch := NewCommandChannel(daemon.CommandAddr(), CommandChannelConfig{})
	reply, err := ch.Call(context.Background(), wire.NewMessage(FnGetName, wire.Int(1)))
	require.NoError(t, err)

	name, err := wire.TakeString(reply)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", name)

	assert.Equal(t, []string{"9:tdGetNamei1s"}, daemon.Requests())

	stats := ch.Stats()
	assert.Equal(t, uint64(1), stats.Calls)
	assert.Equal(t, uint64(0), stats.CallRetries)
	assert.Equal(t, uint64(0), stats.NoAnswers)
}

func TestCommandChannel_RetriesOnce(t *testing.T) {
	daemon := testutils.NewDaemon(t)
	daemon.FailNext(1)

	ch := NewCommandChannel(daemon.CommandAddr(), CommandChannelConfig{})
	reply, err := ch.Call(context.Background(), wire.NewMessage(FnTurnOn, wire.Int(1)))
	require.NoError(t, err)

	status, err := wire.TakeInt(reply)
	require.NoError(t, err)
	assert.Equal(t, 0, status)

	// The retry sends the same bytes
	assert.Equal(t, []string{"8:tdTurnOni1s"}, daemon.Requests())
	assert.Equal(t, uint64(1), ch.Stats().CallRetries)
}

func TestCommandChannel_NoAnswer(t *testing.T) {
	daemon := testutils.NewDaemon(t)
	daemon.FailNext(2)

	ch := NewCommandChannel(daemon.CommandAddr(), CommandChannelConfig{})
	reply, err := ch.Call(context.Background(), wire.NewMessage(FnTurnOn, wire.Int(1)))
	require.ErrorIs(t, err, ErrNoAnswer)
	assert.Nil(t, reply)
	assert.True(t, isTransportError(err), "cause should be kept: %v", err)

	stats := ch.Stats()
	assert.Equal(t, uint64(1), stats.CallRetries)
	assert.Equal(t, uint64(1), stats.NoAnswers)

	// The daemon is back
	_, err = ch.Call(context.Background(), wire.NewMessage(FnTurnOn, wire.Int(1)))
	require.NoError(t, err)
}

func TestCommandChannel_NoAnswerWhenNobodyListens(t *testing.T) {
	dialer := testutils.NewDialerMock(nil, nil)
	ch := NewCommandChannel("daemon:50800", CommandChannelConfig{Dialer: dialer})

	_, err := ch.Call(context.Background(), wire.NewMessage(FnGetNumberOfDevices))
	require.ErrorIs(t, err, ErrNoAnswer)
	require.ErrorIs(t, err, testutils.ErrDialRefused)
	assert.Equal(t, 2, dialer.Dials())
}

func TestCommandChannel_EmptyReplyIsRetried(t *testing.T) {
	dialer := testutils.NewDialerMock(
		testutils.NewConnectionMock(),
		testutils.NewConnectionMock("i3s"),
	)
	ch := NewCommandChannel("daemon:50800", CommandChannelConfig{Dialer: dialer})

	reply, err := ch.Call(context.Background(), wire.NewMessage(FnGetNumberOfDevices))
	require.NoError(t, err)
	n, err := wire.TakeInt(reply)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, dialer.Dials())
}

func TestCommandChannel_ReplyBufferSize(t *testing.T) {
	dialer := testutils.NewDialerMock(testutils.NewConnectionMock("11:hello world"))
	ch := NewCommandChannel("daemon:50800", CommandChannelConfig{Dialer: dialer, ReplyBufferSize: 8})

	reply, err := ch.Call(context.Background(), wire.NewMessage(FnGetName, wire.Int(1)))
	require.NoError(t, err)

	// A single read fills the buffer; the rest of the reply is lost
	assert.Equal(t, "11:hello", string(reply.Unread()))
	_, err = wire.TakeString(reply)
	require.ErrorIs(t, err, wire.ErrNeedMoreData)
}

func TestCommandChannel_ContextCanceled(t *testing.T) {
	dialer := testutils.NewDialerMock(testutils.NewConnectionMock().Hold())
	ch := NewCommandChannel("daemon:50800", CommandChannelConfig{Dialer: dialer})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := ch.Call(ctx, wire.NewMessage(FnTurnOn, wire.Int(1)))
	require.ErrorIs(t, err, ErrNoAnswer)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	// No retry after cancellation
	assert.Equal(t, 1, dialer.Dials())
}

func TestCommandChannel_ContextDeadline(t *testing.T) {
	daemon := testutils.NewDaemon(t)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	daemon.Handle(func(req *wire.Message) []byte {
		<-block
		return nil
	})

	ch := NewCommandChannel(daemon.CommandAddr(), CommandChannelConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ch.Call(ctx, wire.NewMessage(FnTurnOn, wire.Int(1)))
	require.ErrorIs(t, err, ErrNoAnswer)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommandChannel_CircuitBreaker(t *testing.T) {
	newBreaker := NewCircuitBreakerConfig(1, time.Minute, time.Minute)
	dialer := testutils.NewDialerMock() // every dial fails
	ch := NewCommandChannel("daemon:50800", CommandChannelConfig{
		Dialer:         dialer,
		CircuitBreaker: newBreaker("daemon:50800"),
	})

	for range 3 {
		_, err := ch.Call(context.Background(), wire.NewMessage(FnTurnOn, wire.Int(1)))
		require.ErrorIs(t, err, ErrNoAnswer)
	}
	assert.Equal(t, gobreaker.StateOpen, ch.breaker.State())
	assert.Equal(t, 6, dialer.Dials())

	// Open breaker: fails fast without dialing
	_, err := ch.Call(context.Background(), wire.NewMessage(FnTurnOn, wire.Int(1)))
	require.ErrorIs(t, err, ErrNoAnswer)
	require.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, 6, dialer.Dials())
	assert.Equal(t, uint64(4), ch.Stats().NoAnswers)
}
