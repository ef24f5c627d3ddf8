package testutils

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pior/telldus/wire"
)

// CommandHandler builds the reply to one command request. A nil reply closes
// the connection without answering.
type CommandHandler func(req *wire.Message) []byte

// Daemon is an in-process fake telldusd listening on both endpoints on
// 127.0.0.1 with ephemeral ports.
type Daemon struct {
	t         testing.TB
	commandLn net.Listener
	eventLn   net.Listener

	mu          sync.Mutex
	handler     CommandHandler
	failNext    int
	requests    []string
	eventConns  map[net.Conn]struct{}
	eventAccept int
	closed      bool

	wg sync.WaitGroup
}

// NewDaemon starts a fake daemon that is closed when the test ends. By
// default every command is answered with status 0.
func NewDaemon(t testing.TB) *Daemon {
	t.Helper()

	commandLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen command endpoint: %v", err)
	}
	eventLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		commandLn.Close()
		t.Fatalf("listen event endpoint: %v", err)
	}

	d := &Daemon{
		t:          t,
		commandLn:  commandLn,
		eventLn:    eventLn,
		eventConns: make(map[net.Conn]struct{}),
		handler: func(*wire.Message) []byte {
			return wire.AppendInt(nil, 0)
		},
	}

	d.wg.Add(2)
	go d.acceptCommands()
	go d.acceptEvents()

	t.Cleanup(d.Close)
	return d
}

// Host returns the listening host.
func (d *Daemon) Host() string {
	return "127.0.0.1"
}

// CommandPort returns the port of the command endpoint.
func (d *Daemon) CommandPort() int {
	return d.commandLn.Addr().(*net.TCPAddr).Port
}

// EventPort returns the port of the event endpoint.
func (d *Daemon) EventPort() int {
	return d.eventLn.Addr().(*net.TCPAddr).Port
}

// CommandAddr returns the host:port of the command endpoint.
func (d *Daemon) CommandAddr() string {
	return net.JoinHostPort(d.Host(), strconv.Itoa(d.CommandPort()))
}

// EventAddr returns the host:port of the event endpoint.
func (d *Daemon) EventAddr() string {
	return net.JoinHostPort(d.Host(), strconv.Itoa(d.EventPort()))
}

// Handle replaces the command handler.
func (d *Daemon) Handle(h CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// FailNext makes the next n command connections close right after accept.
func (d *Daemon) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = n
}

// Requests returns the raw bytes of every command request received.
func (d *Daemon) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}

// EventConnections returns the number of event connections accepted so far.
func (d *Daemon) EventConnections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eventAccept
}

// OpenEventConnections returns the number of event connections still open.
func (d *Daemon) OpenEventConnections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.eventConns)
}

// WaitEventConnections waits until n event connections have been accepted in
// total and at least one is open. It reports false on timeout.
func (d *Daemon) WaitEventConnections(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		ok := d.eventAccept >= n && len(d.eventConns) > 0
		d.mu.Unlock()
		if ok {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Push writes raw bytes to every open event connection.
func (d *Daemon) Push(data string) {
	d.mu.Lock()
	conns := make([]net.Conn, 0, len(d.eventConns))
	for c := range d.eventConns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		if _, err := io.WriteString(c, data); err != nil {
			d.t.Logf("push event: %v", err)
		}
	}
}

// DropEventConnections closes every open event connection.
func (d *Daemon) DropEventConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for c := range d.eventConns {
		c.Close()
		delete(d.eventConns, c)
	}
}

// Close stops both listeners and closes every connection.
func (d *Daemon) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for c := range d.eventConns {
		c.Close()
	}
	d.mu.Unlock()

	d.commandLn.Close()
	d.eventLn.Close()
	d.wg.Wait()
}

func (d *Daemon) acceptCommands() {
	defer d.wg.Done()
	for {
		conn, err := d.commandLn.Accept()
		if err != nil {
			return
		}

		d.mu.Lock()
		fail := d.failNext > 0
		if fail {
			d.failNext--
		}
		d.mu.Unlock()

		if fail {
			conn.Close()
			continue
		}

		d.wg.Add(1)
		go d.serveCommand(conn)
	}
}

func (d *Daemon) serveCommand(conn net.Conn) {
	defer d.wg.Done()
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var raw []byte
	var req *wire.Message
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		raw = append(raw, buf[:n]...)
		if len(raw) > 0 {
			m, perr := wire.ParseMessage(raw)
			if perr == nil {
				req = m
				break
			}
			if !errors.Is(perr, wire.ErrNeedMoreData) {
				d.t.Logf("fake daemon: bad request %q: %v", raw, perr)
				return
			}
		}
		if err != nil {
			return
		}
	}

	d.mu.Lock()
	d.requests = append(d.requests, string(raw))
	handler := d.handler
	d.mu.Unlock()

	if reply := handler(req); reply != nil {
		conn.Write(reply)
	}
}

func (d *Daemon) acceptEvents() {
	defer d.wg.Done()
	for {
		conn, err := d.eventLn.Accept()
		if err != nil {
			return
		}

		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			conn.Close()
			return
		}
		d.eventConns[conn] = struct{}{}
		d.eventAccept++
		d.mu.Unlock()

		d.wg.Add(1)
		go d.watchEvent(conn)
	}
}

// watchEvent drains the event connection to notice when the client closes it.
func (d *Daemon) watchEvent(conn net.Conn) {
	defer d.wg.Done()
	io.Copy(io.Discard, conn)

	d.mu.Lock()
	delete(d.eventConns, conn)
	d.mu.Unlock()
	conn.Close()
}
