package telldus

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pior/telldus/wire"
)

// Dialer opens transport connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Connection is one TCP connection to a daemon endpoint.
//
// Connect, Read and Write are meant to be driven by a single goroutine.
// Disconnect may be called from any goroutine at any time; closing the socket
// unblocks a pending Read, which is how the event channel is stopped.
type Connection struct {
	addr   string
	dialer Dialer
	logger zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// NewConnection returns a disconnected connection to addr (host:port).
// A nil dialer selects a default net.Dialer.
func NewConnection(addr string, dialer Dialer, logger zerolog.Logger) *Connection {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return &Connection{
		addr:   addr,
		dialer: dialer,
		logger: logger,
	}
}

// Addr returns the connection address
func (c *Connection) Addr() string {
	return c.addr
}

// IsConnected reports whether a socket is currently open.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect opens the socket. It reports failure as false instead of an error
// so that callers can drive their own retry loop; the cause is logged.
// Connecting an open connection is a no-op that returns true.
func (c *Connection) Connect(ctx context.Context) bool {
	if err := c.connect(ctx); err != nil {
		c.logger.Warn().Err(err).Str("addr", c.addr).Msg("connect failed")
		return false
	}
	return true
}

func (c *Connection) connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	c.logger.Debug().Str("addr", c.addr).Msg("connecting")
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return &ConnectionError{Op: "connect", Addr: c.addr, Err: err}
	}

	c.mu.Lock()
	if c.conn != nil {
		// Another Connect won the race
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug().Str("addr", c.addr).Msg("connected")
	return nil
}

// Disconnect closes the socket. It is safe to call when not connected and
// safe to call concurrently with Read.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Read performs one transport read, appending the received bytes at the
// buffer's write cursor. It blocks until data arrives, the peer closes the
// connection, or Disconnect is called.
func (c *Connection) Read(buf *wire.Buffer) (int, error) {
	conn := c.current()
	if conn == nil {
		return 0, &ConnectionError{Op: "read", Addr: c.addr, Err: net.ErrClosed}
	}

	n, err := buf.Fill(conn)
	if err != nil {
		return n, &ConnectionError{Op: "read", Addr: c.addr, Err: err}
	}
	if c.logger.GetLevel() <= zerolog.TraceLevel {
		c.logger.Trace().Str("addr", c.addr).Int("bytes", n).Msg("read")
	}
	return n, nil
}

// Write sends the whole serialized message in a single write.
func (c *Connection) Write(msg *wire.Message) error {
	conn := c.current()
	if conn == nil {
		return &ConnectionError{Op: "write", Addr: c.addr, Err: net.ErrClosed}
	}

	if _, err := msg.WriteTo(conn); err != nil {
		return &ConnectionError{Op: "write", Addr: c.addr, Err: err}
	}
	return nil
}

// SetDeadline sets the read and write deadline of the open socket.
func (c *Connection) SetDeadline(t time.Time) error {
	conn := c.current()
	if conn == nil {
		return net.ErrClosed
	}
	return conn.SetDeadline(t)
}

func (c *Connection) current() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
