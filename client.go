package telldus

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/telldus/wire"
)

// Config holds the configuration of a Client. The zero value connects to a
// daemon on localhost with default settings.
type Config struct {
	// Host is the daemon host name or address.
	// Default: DefaultHost.
	Host string

	// CommandPort is the port of the command endpoint.
	// Default: DefaultCommandPort.
	CommandPort int

	// EventPort is the port of the event endpoint.
	// Default: DefaultEventPort.
	EventPort int

	// Dialer opens connections to both endpoints.
	// If nil, a net.Dialer is used.
	Dialer Dialer

	// ReplyBufferSize is the capacity of a command reply.
	// Default: DefaultReplyBufferSize.
	ReplyBufferSize int

	// EventBufferSize is the initial capacity of the event read buffer.
	// Default: DefaultEventBufferSize.
	EventBufferSize int

	// MaxFrameSize bounds an incomplete event frame.
	// Default: DefaultMaxFrameSize.
	MaxFrameSize int

	// ReconnectBackoff is the pause between event connection attempts.
	// Default: DefaultReconnectBackoff.
	ReconnectBackoff time.Duration

	// Registry decodes event frames. Additional tags can be registered on
	// it, but their decoders must return one of the five event types
	// (DeviceEvent, ..., ControllerEvent): a new tag is mapped onto an
	// existing variant, for example RawDeviceEvent.
	// Default: DefaultRegistry().
	Registry *Registry

	// NewCircuitBreaker creates a circuit breaker for the command endpoint.
	// Called once when the client is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(addr string) CircuitBreaker

	// Logger receives the client logs.
	// If nil, logging is disabled.
	Logger *zerolog.Logger
}

// Client is a telldusd client. It embeds Commands for the typed remote
// functions and owns the event channel that feeds its bus.
type Client struct {
	*Commands

	commands *CommandChannel
	events   *EventChannel
	bus      *Bus
	registry *Registry
	logger   zerolog.Logger
	stats    *statsCollector
}

var _ Caller = (*Client)(nil)

// NewClient creates a client. It does not connect: commands dial on demand
// and the event channel is started by Start.
func NewClient(config Config) (*Client, error) {
	host := config.Host
	if host == "" {
		host = DefaultHost
	}
	commandPort := config.CommandPort
	if commandPort == 0 {
		commandPort = DefaultCommandPort
	}
	eventPort := config.EventPort
	if eventPort == 0 {
		eventPort = DefaultEventPort
	}
	for _, port := range []int{commandPort, eventPort} {
		if port < 0 || port > 65535 {
			return nil, fmt.Errorf("telldus: invalid port %d", port)
		}
	}

	registry := config.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	logger := loggerOrNop(config.Logger)
	stats := newStatsCollector()

	commandAddr := net.JoinHostPort(host, strconv.Itoa(commandPort))
	eventAddr := net.JoinHostPort(host, strconv.Itoa(eventPort))

	var breaker CircuitBreaker
	if config.NewCircuitBreaker != nil {
		breaker = config.NewCircuitBreaker(commandAddr)
	}

	commands := NewCommandChannel(commandAddr, CommandChannelConfig{
		Dialer:          config.Dialer,
		ReplyBufferSize: config.ReplyBufferSize,
		CircuitBreaker:  breaker,
		Logger:          &logger,
	})
	commands.stats = stats

	bus := NewBus(logger)

	events := NewEventChannel(eventAddr, bus, EventChannelConfig{
		Dialer:           config.Dialer,
		Decoder:          registry,
		ReconnectBackoff: config.ReconnectBackoff,
		BufferSize:       config.EventBufferSize,
		MaxFrameSize:     config.MaxFrameSize,
		Logger:           &logger,
	})
	events.stats = stats

	client := &Client{
		commands: commands,
		events:   events,
		bus:      bus,
		registry: registry,
		logger:   logger,
		stats:    stats,
	}
	client.Commands = NewCommands(client)
	return client, nil
}

// Start starts reading the event endpoint in the background. Subscribe
// before starting to receive the first events.
func (c *Client) Start() error {
	return c.events.Start()
}

// Close stops the event channel and waits for it to exit. Command calls
// remain usable.
func (c *Client) Close() {
	c.events.Stop()
}

// Events returns the event channel, for callers that want to run it on their
// own goroutine with Run instead of Start.
func (c *Client) Events() *EventChannel {
	return c.events
}

// Registry returns the event registry.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Subscribe registers sub for the events it handles. See Bus.Subscribe.
func (c *Client) Subscribe(sub any) error {
	return c.bus.Subscribe(sub)
}

// Unsubscribe removes sub. See Bus.Unsubscribe.
func (c *Client) Unsubscribe(sub any) bool {
	return c.bus.Unsubscribe(sub)
}

// Call sends a raw request on the command endpoint. See CommandChannel.Call.
func (c *Client) Call(ctx context.Context, req *wire.Message) (*wire.Buffer, error) {
	return c.commands.Call(ctx, req)
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// CircuitBreakerState returns the state of the command circuit breaker.
// ok is false when no circuit breaker is configured.
func (c *Client) CircuitBreakerState() (state gobreaker.State, ok bool) {
	if c.commands.breaker == nil {
		return gobreaker.StateClosed, false
	}
	return c.commands.breaker.State(), true
}
