package telldus

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/telldus/wire"
)

// CommandChannelConfig configures a CommandChannel. The zero value is valid.
type CommandChannelConfig struct {
	// Dialer opens the per-call connections. If nil, a net.Dialer is used.
	Dialer Dialer

	// ReplyBufferSize is the capacity of the reply buffer. The reply is read
	// with a single transport read, so longer replies are truncated.
	// Default: DefaultReplyBufferSize.
	ReplyBufferSize int

	// CircuitBreaker, if set, guards every call.
	CircuitBreaker CircuitBreaker

	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

// CommandChannel performs request/response calls on the command endpoint.
//
// The daemon serves one exchange per connection, so every attempt dials a
// fresh connection. Calls are safe for concurrent use; they share no
// transport state.
type CommandChannel struct {
	addr      string
	dialer    Dialer
	replySize int
	breaker   CircuitBreaker
	logger    zerolog.Logger
	stats     *statsCollector
}

// NewCommandChannel returns a channel for the command endpoint at addr.
func NewCommandChannel(addr string, config CommandChannelConfig) *CommandChannel {
	replySize := config.ReplyBufferSize
	if replySize <= 0 {
		replySize = DefaultReplyBufferSize
	}
	return &CommandChannel{
		addr:      addr,
		dialer:    config.Dialer,
		replySize: replySize,
		breaker:   config.CircuitBreaker,
		logger:    loggerOrNop(config.Logger).With().Str("channel", "command").Logger(),
		stats:     newStatsCollector(),
	}
}

// Addr returns the command endpoint address
func (c *CommandChannel) Addr() string {
	return c.addr
}

// Stats returns a snapshot of the call counters.
func (c *CommandChannel) Stats() ClientStats {
	return c.stats.snapshot()
}

// Call sends req and returns the buffer holding the raw reply.
//
// A transport failure (connect, write, read, or the peer closing before
// replying) is retried once on a new connection. When the retry fails too,
// or when ctx is done, Call returns an error wrapping ErrNoAnswer and the
// last cause. The deadline of ctx, if any, applies to each socket operation.
func (c *CommandChannel) Call(ctx context.Context, req *wire.Message) (*wire.Buffer, error) {
	c.stats.recordCall()

	if c.breaker == nil {
		return c.call(ctx, req)
	}

	reply, err := c.breaker.Execute(func() (*wire.Buffer, error) {
		return c.call(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.stats.recordNoAnswer()
		return nil, fmt.Errorf("%w: %s: %w", ErrNoAnswer, req.Function(), err)
	}
	return reply, err
}

func (c *CommandChannel) call(ctx context.Context, req *wire.Message) (*wire.Buffer, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		if attempt > 1 {
			c.stats.recordRetry()
			c.logger.Debug().Err(lastErr).Str("fn", req.Function()).Int("attempt", attempt).Msg("retrying call")
		}

		reply, err := c.exchange(ctx, req)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if !isTransportError(err) {
			return nil, err
		}
		lastErr = err
	}

	c.stats.recordNoAnswer()
	c.logger.Warn().Err(lastErr).Str("addr", c.addr).Str("fn", req.Function()).Msg("no answer")
	return nil, fmt.Errorf("%w: %s: %w", ErrNoAnswer, req.Function(), lastErr)
}

// exchange performs one attempt on a new connection.
func (c *CommandChannel) exchange(ctx context.Context, req *wire.Message) (*wire.Buffer, error) {
	conn := NewConnection(c.addr, c.dialer, c.logger)
	defer conn.Disconnect()

	if err := conn.connect(ctx); err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Disconnect() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, &ConnectionError{Op: "connect", Addr: c.addr, Err: err}
		}
	}

	if err := conn.Write(req); err != nil {
		return nil, err
	}

	reply := wire.NewBuffer(c.replySize)
	n, err := conn.Read(reply)
	if n > 0 {
		// A reply followed by the peer closing is still a reply
		return reply, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, &ConnectionError{Op: "read", Addr: c.addr, Err: io.ErrUnexpectedEOF}
}

func loggerOrNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}
