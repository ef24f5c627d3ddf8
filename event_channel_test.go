package telldus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/telldus/internal/testutils"
	"github.com/pior/telldus/wire"
)

// collector is a Dispatcher recording every event.
type collector struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 100)}
}

func (c *collector) Dispatch(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.notify <- struct{}{}
}

func (c *collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// wait waits until n events have been dispatched in total.
func (c *collector) wait(t *testing.T, n int) []Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for len(c.Events()) < n {
		select {
		case <-c.notify:
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(c.Events()))
		}
	}
	return c.Events()
}

func deviceFrame(id int) string {
	return frame(TagDeviceEvent, wire.Int(id), wire.Int(int(MethodTurnOn)), wire.String(""))
}

func TestEventChannel_SplitFrames(t *testing.T) {
	all := deviceFrame(1) + deviceFrame(2) + deviceFrame(3)

	// Frames split at arbitrary points, including inside fields
	mock := testutils.NewConnectionMock(all[:5], all[5:23], all[23:24], all[24:]).Hold()
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{
		Dialer:     testutils.NewDialerMock(mock),
		BufferSize: 8,
	})

	require.NoError(t, ch.Start())
	events := sink.wait(t, 3)
	ch.Stop()

	assert.Equal(t, []Event{
		DeviceEvent{DeviceID: 1, Method: MethodTurnOn},
		DeviceEvent{DeviceID: 2, Method: MethodTurnOn},
		DeviceEvent{DeviceID: 3, Method: MethodTurnOn},
	}, events)
	assert.True(t, mock.IsClosed())
	assert.Equal(t, uint64(3), ch.Stats().Events)
}

func TestEventChannel_SeveralFramesInOneRead(t *testing.T) {
	mock := testutils.NewConnectionMock(deviceFrame(1) + deviceFrame(2)).Hold()
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{Dialer: testutils.NewDialerMock(mock)})

	require.NoError(t, ch.Start())
	events := sink.wait(t, 2)
	ch.Stop()

	assert.Len(t, events, 2)
}

func TestEventChannel_FramesReadWithEOF(t *testing.T) {
	mock := testutils.NewConnectionMock(deviceFrame(7) + deviceFrame(8)).EOFWithLastChunk()
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{
		Dialer:           testutils.NewDialerMock(mock),
		ReconnectBackoff: time.Hour,
	})

	require.NoError(t, ch.Start())
	events := sink.wait(t, 2)
	ch.Stop()

	assert.Equal(t, []Event{
		DeviceEvent{DeviceID: 7, Method: MethodTurnOn},
		DeviceEvent{DeviceID: 8, Method: MethodTurnOn},
	}, events)
	stats := ch.Stats()
	assert.Equal(t, uint64(2), stats.Events)
	assert.Equal(t, uint64(1), stats.EventConnects)
	assert.Zero(t, stats.Desyncs)
}

func TestEventChannel_PartialFrameReadWithEOF(t *testing.T) {
	partial := deviceFrame(2)[:10]
	mock := testutils.NewConnectionMock(deviceFrame(1) + partial).EOFWithLastChunk()
	next := testutils.NewConnectionMock(deviceFrame(3)).Hold()
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{
		Dialer:           testutils.NewDialerMock(mock, next),
		ReconnectBackoff: 10 * time.Millisecond,
	})

	require.NoError(t, ch.Start())
	events := sink.wait(t, 2)
	ch.Stop()

	// The incomplete frame dies with its connection; nothing is misread
	assert.Equal(t, []Event{
		DeviceEvent{DeviceID: 1, Method: MethodTurnOn},
		DeviceEvent{DeviceID: 3, Method: MethodTurnOn},
	}, events)
	assert.Zero(t, ch.Stats().Desyncs)
}

func TestEventChannel_ReconnectsAfterConnectFailure(t *testing.T) {
	mock := testutils.NewConnectionMock(deviceFrame(5)).Hold()
	dialer := testutils.NewDialerMock(nil, nil, mock)
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{
		Dialer:           dialer,
		ReconnectBackoff: 10 * time.Millisecond,
	})

	require.NoError(t, ch.Start())
	sink.wait(t, 1)
	ch.Stop()

	assert.Equal(t, 3, dialer.Dials())
	stats := ch.Stats()
	assert.Equal(t, uint64(2), stats.EventConnectFailures)
	assert.Equal(t, uint64(1), stats.EventConnects)
}

func TestEventChannel_DesyncDiscardsAndReconnects(t *testing.T) {
	garbage := "i42s" + deviceFrame(1) // not a tag; the valid frame after it is lost too
	first := testutils.NewConnectionMock(garbage).Hold()
	second := testutils.NewConnectionMock(deviceFrame(2)).Hold()
	dialer := testutils.NewDialerMock(first, second)
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{
		Dialer:           dialer,
		ReconnectBackoff: 10 * time.Millisecond,
	})

	require.NoError(t, ch.Start())
	events := sink.wait(t, 1)
	ch.Stop()

	assert.Equal(t, []Event{DeviceEvent{DeviceID: 2, Method: MethodTurnOn}}, events)
	assert.True(t, first.IsClosed())

	stats := ch.Stats()
	assert.Equal(t, uint64(1), stats.Desyncs)
	assert.Equal(t, uint64(0), stats.UnknownEvents)
	assert.Equal(t, uint64(len(garbage)), stats.DiscardedBytes)
}

func TestEventChannel_UnknownTagReconnects(t *testing.T) {
	unknown := frame("TDFutureEvent", wire.Int(1))
	first := testutils.NewConnectionMock(deviceFrame(1) + unknown).Hold()
	second := testutils.NewConnectionMock(deviceFrame(2)).Hold()
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{
		Dialer:           testutils.NewDialerMock(first, second),
		ReconnectBackoff: 10 * time.Millisecond,
	})

	require.NoError(t, ch.Start())
	events := sink.wait(t, 2)
	ch.Stop()

	assert.Equal(t, []Event{
		DeviceEvent{DeviceID: 1, Method: MethodTurnOn},
		DeviceEvent{DeviceID: 2, Method: MethodTurnOn},
	}, events)

	stats := ch.Stats()
	assert.Equal(t, uint64(1), stats.UnknownEvents)
	assert.Equal(t, uint64(0), stats.Desyncs)
	assert.Equal(t, uint64(len(unknown)), stats.DiscardedBytes)
}

func TestEventChannel_OversizedPartialFrame(t *testing.T) {
	// Declares a 1000 byte tag that never completes
	first := testutils.NewConnectionMock("1000:", string(make([]byte, 200))).Hold()
	second := testutils.NewConnectionMock(deviceFrame(9)).Hold()
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{
		Dialer:           testutils.NewDialerMock(first, second),
		ReconnectBackoff: 10 * time.Millisecond,
		MaxFrameSize:     100,
	})

	require.NoError(t, ch.Start())
	events := sink.wait(t, 1)
	ch.Stop()

	assert.Equal(t, []Event{DeviceEvent{DeviceID: 9, Method: MethodTurnOn}}, events)
	assert.Equal(t, uint64(1), ch.Stats().Desyncs)
}

func TestEventChannel_StopUnblocksRead(t *testing.T) {
	mock := testutils.NewConnectionMock().Hold()
	dialer := testutils.NewDialerMock(mock)
	ch := NewEventChannel("daemon:50801", newCollector(), EventChannelConfig{Dialer: dialer})

	require.NoError(t, ch.Start())
	require.Eventually(t, func() bool { return dialer.Dials() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond) // let the loop block in Read

	start := time.Now()
	ch.Stop()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, mock.IsClosed())

	select {
	case <-ch.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	// No reconnect after stop
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, dialer.Dials())
}

func TestEventChannel_StopDuringBackoff(t *testing.T) {
	dialer := testutils.NewDialerMock() // every dial fails
	ch := NewEventChannel("daemon:50801", newCollector(), EventChannelConfig{
		Dialer:           dialer,
		ReconnectBackoff: time.Hour,
	})

	require.NoError(t, ch.Start())
	require.Eventually(t, func() bool { return dialer.Dials() == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	ch.Stop()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, dialer.Dials())
}

func TestEventChannel_StartStop(t *testing.T) {
	ch := NewEventChannel("daemon:50801", newCollector(), EventChannelConfig{
		Dialer:           testutils.NewDialerMock(),
		ReconnectBackoff: 10 * time.Millisecond,
	})

	// Stop before Start is a no-op
	ch.Stop()

	require.NoError(t, ch.Start())
	require.ErrorIs(t, ch.Start(), ErrAlreadyStarted)
	require.ErrorIs(t, ch.Run(context.Background()), ErrAlreadyStarted)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.Stop()
		}()
	}
	wg.Wait()
	ch.Stop()

	// Restartable
	require.NoError(t, ch.Start())
	ch.Stop()
}

func TestEventChannel_Run(t *testing.T) {
	mock := testutils.NewConnectionMock(deviceFrame(1)).Hold()
	sink := newCollector()
	ch := NewEventChannel("daemon:50801", sink, EventChannelConfig{Dialer: testutils.NewDialerMock(mock)})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- ch.Run(ctx) }()

	sink.wait(t, 1)
	require.ErrorIs(t, ch.Start(), ErrAlreadyStarted)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, mock.IsClosed())
}

func TestEventChannel_Daemon(t *testing.T) {
	daemon := testutils.NewDaemon(t)
	sink := newCollector()
	ch := NewEventChannel(daemon.EventAddr(), sink, EventChannelConfig{ReconnectBackoff: 10 * time.Millisecond})

	require.NoError(t, ch.Start())
	defer ch.Stop()
	require.True(t, daemon.WaitEventConnections(1, time.Second))

	sensor := frame(TagSensorEvent, wire.String("fineoffset"), wire.String("temperature"),
		wire.Int(135), wire.Int(1), wire.String("-3.5"), wire.Int(1700000000))
	daemon.Push(sensor[:10])
	time.Sleep(10 * time.Millisecond)
	daemon.Push(sensor[10:] + deviceFrame(1))

	events := sink.wait(t, 2)
	assert.Equal(t, KindSensor, events[0].Kind())
	assert.Equal(t, "-3.5", events[0].(SensorEvent).Value.Value)
	assert.Equal(t, KindDevice, events[1].Kind())

	// Dropped by the daemon: reconnect and keep receiving
	daemon.DropEventConnections()
	require.True(t, daemon.WaitEventConnections(2, 2*time.Second))
	daemon.Push(deviceFrame(2))
	events = sink.wait(t, 3)
	assert.Equal(t, DeviceEvent{DeviceID: 2, Method: MethodTurnOn}, events[2])

	// Garbage from the daemon: the channel drops the connection and comes back
	daemon.Push("garbage")
	require.True(t, daemon.WaitEventConnections(3, 2*time.Second))
	daemon.Push(deviceFrame(3))
	events = sink.wait(t, 4)
	assert.Equal(t, DeviceEvent{DeviceID: 3, Method: MethodTurnOn}, events[3])

	ch.Stop()
	require.Eventually(t, func() bool { return daemon.OpenEventConnections() == 0 }, time.Second, 5*time.Millisecond)
}
