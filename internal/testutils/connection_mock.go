package testutils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// ConnectionMock is a mock implementation of net.Conn for testing.
//
// Each Read returns the next scripted chunk (or as much of it as fits), so
// tests control exactly how a stream is split across reads. Once the chunks
// are exhausted Read returns io.EOF, or blocks until Close when the mock is
// held open.
type ConnectionMock struct {
	mu       sync.Mutex
	chunks   []string
	writeBuf bytes.Buffer
	hold     bool
	eofLast  bool

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnectionMock creates a new mock connection that replies with chunks,
// one per Read.
func NewConnectionMock(chunks ...string) *ConnectionMock {
	return &ConnectionMock{
		chunks: chunks,
		closed: make(chan struct{}),
	}
}

// EOFWithLastChunk makes the Read that returns the end of the last chunk
// report io.EOF along with the data, as some readers do.
func (m *ConnectionMock) EOFWithLastChunk() *ConnectionMock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eofLast = true
	return m
}

// Hold makes Read block after the last chunk until the connection is closed,
// like an idle peer.
func (m *ConnectionMock) Hold() *ConnectionMock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = true
	return m
}

func (m *ConnectionMock) Read(b []byte) (n int, err error) {
	m.mu.Lock()
	if m.isClosed() {
		m.mu.Unlock()
		return 0, net.ErrClosed
	}
	if len(m.chunks) > 0 {
		n = copy(b, m.chunks[0])
		m.chunks[0] = m.chunks[0][n:]
		if m.chunks[0] == "" {
			m.chunks = m.chunks[1:]
		}
		if len(m.chunks) == 0 && m.eofLast {
			err = io.EOF
		}
		m.mu.Unlock()
		return n, err
	}
	hold := m.hold
	m.mu.Unlock()

	if !hold {
		return 0, io.EOF
	}
	<-m.closed
	return 0, net.ErrClosed
}

func (m *ConnectionMock) Write(b []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isClosed() {
		return 0, net.ErrClosed
	}
	return m.writeBuf.Write(b)
}

func (m *ConnectionMock) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// IsClosed reports whether Close was called.
func (m *ConnectionMock) IsClosed() bool {
	return m.isClosed()
}

func (m *ConnectionMock) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *ConnectionMock) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *ConnectionMock) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50800}
}

func (m *ConnectionMock) SetDeadline(t time.Time) error      { return nil }
func (m *ConnectionMock) SetReadDeadline(t time.Time) error  { return nil }
func (m *ConnectionMock) SetWriteDeadline(t time.Time) error { return nil }

// GetWrittenRequest returns the raw request bytes written to the mock connection
func (m *ConnectionMock) GetWrittenRequest() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeBuf.String()
}

// ErrDialRefused is returned by DialerMock for a nil scripted connection.
var ErrDialRefused = errors.New("testutils: connection refused")

// DialerMock hands out scripted connections, one per dial. A nil entry makes
// that dial fail with ErrDialRefused, as does dialing past the end of the
// script.
type DialerMock struct {
	mu    sync.Mutex
	conns []net.Conn
	dials int
}

// NewDialerMock creates a dialer returning conns in order.
func NewDialerMock(conns ...net.Conn) *DialerMock {
	return &DialerMock{conns: conns}
}

func (d *DialerMock) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++

	if len(d.conns) == 0 {
		return nil, &net.OpError{Op: "dial", Net: network, Err: ErrDialRefused}
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	if conn == nil {
		return nil, &net.OpError{Op: "dial", Net: network, Err: ErrDialRefused}
	}
	return conn, nil
}

// Dials returns the number of dial attempts.
func (d *DialerMock) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
