package telldus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/pior/telldus/wire"
)

// Decoder decodes one event frame. *Registry satisfies it.
type Decoder interface {
	Decode(b *wire.Buffer) (Event, error)
}

// Dispatcher receives decoded events. *Bus satisfies it.
type Dispatcher interface {
	Dispatch(ev Event)
}

// EventChannelConfig configures an EventChannel. The zero value is valid.
type EventChannelConfig struct {
	// Dialer opens the event connection. If nil, a net.Dialer is used.
	Dialer Dialer

	// Decoder turns frames into events. Default: DefaultRegistry().
	Decoder Decoder

	// ReconnectBackoff is the pause after a failed connect, a read error or
	// a desync. Default: DefaultReconnectBackoff.
	ReconnectBackoff time.Duration

	// BufferSize is the initial capacity of the read buffer, which grows to
	// hold a frame split over several reads. Default: DefaultEventBufferSize.
	BufferSize int

	// MaxFrameSize bounds an incomplete frame. A partial frame that grows
	// beyond it is handled as a desync. Default: DefaultMaxFrameSize.
	MaxFrameSize int

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// EventChannel reads the event endpoint and dispatches every event.
//
// A single goroutine owns the connection and the read buffer. It connects,
// reads, decodes one frame at a time and dispatches it, reconnecting after a
// fixed backoff whenever the connection fails or the stream desyncs.
type EventChannel struct {
	conn       *Connection
	decoder    Decoder
	dispatcher Dispatcher
	backoff    time.Duration
	bufferSize int
	maxFrame   int
	logger     zerolog.Logger
	stats      *statsCollector

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEventChannel returns a stopped channel for the event endpoint at addr.
func NewEventChannel(addr string, dispatcher Dispatcher, config EventChannelConfig) *EventChannel {
	logger := loggerOrNop(config.Logger).With().Str("channel", "event").Logger()

	decoder := config.Decoder
	if decoder == nil {
		decoder = DefaultRegistry()
	}
	backoff := config.ReconnectBackoff
	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}
	maxFrame := config.MaxFrameSize
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}

	return &EventChannel{
		conn:       NewConnection(addr, config.Dialer, logger),
		decoder:    decoder,
		dispatcher: dispatcher,
		backoff:    backoff,
		bufferSize: bufferSize,
		maxFrame:   maxFrame,
		logger:     logger,
		stats:      newStatsCollector(),
	}
}

// Addr returns the event endpoint address
func (e *EventChannel) Addr() string {
	return e.conn.Addr()
}

// Stats returns a snapshot of the event counters.
func (e *EventChannel) Stats() ClientStats {
	return e.stats.snapshot()
}

// Start runs the channel in a new goroutine. It returns ErrAlreadyStarted if
// the channel is running. A stopped channel can be started again.
func (e *EventChannel) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done != nil || !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	go func() {
		defer close(done)
		e.loop(ctx)
	}()
	return nil
}

// Stop cancels the channel and waits until its goroutine has exited and the
// connection is closed. A blocked read is interrupted by closing the socket.
// Stop is idempotent and safe to call concurrently.
func (e *EventChannel) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	e.mu.Lock()
	if e.done == done {
		e.cancel = nil
		e.done = nil
	}
	e.mu.Unlock()
}

// Done returns a channel closed when the goroutine started by Start exits.
// It returns a closed channel when the channel was not started.
func (e *EventChannel) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.done
}

// Run runs the channel on the calling goroutine until ctx is done. It returns
// nil once stopped, or ErrAlreadyStarted if the channel is already running.
func (e *EventChannel) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	e.loop(ctx)
	return nil
}

// loop is the channel state machine. The caller has set running.
func (e *EventChannel) loop(ctx context.Context) {
	defer e.running.Store(false)

	stop := context.AfterFunc(ctx, func() { e.conn.Disconnect() })
	defer stop()
	defer e.conn.Disconnect()

	e.logger.Debug().Str("addr", e.conn.Addr()).Msg("event channel started")

	buf := wire.NewBuffer(e.bufferSize)
	for ctx.Err() == nil {
		if !e.conn.IsConnected() {
			if !e.connect(ctx) {
				e.sleep(ctx)
				continue
			}
			buf.Reset()
		}

		if err := e.readFrames(ctx, buf); err != nil {
			e.conn.Disconnect()
			if ctx.Err() != nil {
				break
			}
			e.sleep(ctx)
		}
	}

	e.logger.Debug().Str("addr", e.conn.Addr()).Msg("event channel stopped")
}

// connect opens the connection unless ctx is done. A connection that
// completes after cancellation is closed again.
func (e *EventChannel) connect(ctx context.Context) bool {
	ok := e.conn.Connect(ctx)
	if ctx.Err() != nil {
		e.conn.Disconnect()
		return false
	}
	e.stats.recordConnect(ok)
	return ok
}

// readFrames reads and dispatches frames until the connection fails, the
// stream desyncs, or ctx is done. It always returns a non-nil error.
func (e *EventChannel) readFrames(ctx context.Context, buf *wire.Buffer) error {
	needMore := buf.Len() == 0
	var readErr error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if needMore {
			if readErr != nil {
				return readErr
			}
			n, err := e.conn.Read(buf)
			if err != nil {
				if ctx.Err() == nil {
					e.logger.Warn().Err(err).Str("addr", e.conn.Addr()).Int("bytes", n).Msg("event read failed")
				}
				if n == 0 {
					return err
				}
				// Frames that arrived with the error are dispatched first
				readErr = err
			}
		}

		buf.Mark()
		ev, err := e.decoder.Decode(buf)
		switch {
		case err == nil:
			buf.Commit()
			e.stats.recordEvent()
			e.logger.Debug().Str("kind", ev.Kind().String()).Msg("event received")
			e.dispatcher.Dispatch(ev)
			needMore = buf.Len() == 0

		case errors.Is(err, wire.ErrNeedMoreData):
			buf.Rewind()
			if buf.Len() > e.maxFrame {
				err = &DesyncError{Err: fmt.Errorf("partial frame exceeds %d bytes", e.maxFrame)}
				e.desync(buf, err)
				return err
			}
			needMore = true

		default:
			buf.Rewind()
			e.desync(buf, err)
			return err
		}
	}
}

// desync drops every buffered byte. Frames have no envelope, so there is no
// way to find the next frame boundary in what remains.
func (e *EventChannel) desync(buf *wire.Buffer, err error) {
	digest := xxh3.Hash(buf.Unread())
	n := buf.Discard()

	unknown := errors.Is(err, ErrUnknownKind)
	e.stats.recordDesync(unknown, n)

	var de *DesyncError
	tag := ""
	if errors.As(err, &de) {
		tag = de.Tag
	}
	e.logger.Warn().
		Err(err).
		Str("addr", e.conn.Addr()).
		Str("tag", tag).
		Int("bytes", n).
		Str("digest", strconv.FormatUint(digest, 16)).
		Msg("event stream out of sync, reconnecting")
}

func (e *EventChannel) sleep(ctx context.Context) {
	t := time.NewTimer(e.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
