package telldus

import (
	"sync/atomic"
	"time"

	"github.com/pior/telldus/internal/coarsetime"
)

// ClientStats contains statistics about command calls and the event stream.
// All fields are safe for concurrent access.
//
// For Prometheus integration, see the promstats package, which exposes these
// as counters.
type ClientStats struct {
	// Command channel
	Calls       uint64 // Total command calls
	CallRetries uint64 // Calls that needed the second attempt
	NoAnswers   uint64 // Calls that failed with ErrNoAnswer

	// Event channel
	EventConnects        uint64 // Successful connects to the event endpoint
	EventConnectFailures uint64 // Failed connects to the event endpoint
	Events               uint64 // Events decoded and dispatched
	Desyncs              uint64 // Malformed frames (buffer discarded, reconnected)
	UnknownEvents        uint64 // Frames with an unregistered tag (buffer discarded, reconnected)
	DiscardedBytes       uint64 // Bytes dropped by desync recovery
	LastEventUnix        int64  // Unix time of the last dispatched event, 0 before the first
}

// LastEvent returns the time of the last dispatched event, or the zero time.
// The resolution is coarse, a fraction of a second.
func (s ClientStats) LastEvent() time.Time {
	if s.LastEventUnix == 0 {
		return time.Time{}
	}
	return time.Unix(s.LastEventUnix, 0)
}

// statsCollector provides internal methods for updating client stats.
// Not exported - channels update their own stats.
type statsCollector struct {
	stats *ClientStats
}

func newStatsCollector() *statsCollector {
	return &statsCollector{
		stats: &ClientStats{},
	}
}

func (c *statsCollector) recordCall() {
	atomic.AddUint64(&c.stats.Calls, 1)
}

func (c *statsCollector) recordRetry() {
	atomic.AddUint64(&c.stats.CallRetries, 1)
}

func (c *statsCollector) recordNoAnswer() {
	atomic.AddUint64(&c.stats.NoAnswers, 1)
}

func (c *statsCollector) recordConnect(ok bool) {
	if ok {
		atomic.AddUint64(&c.stats.EventConnects, 1)
	} else {
		atomic.AddUint64(&c.stats.EventConnectFailures, 1)
	}
}

func (c *statsCollector) recordEvent() {
	atomic.AddUint64(&c.stats.Events, 1)
	atomic.StoreInt64(&c.stats.LastEventUnix, coarsetime.Now().Unix())
}

func (c *statsCollector) recordDesync(unknownKind bool, discarded int) {
	if unknownKind {
		atomic.AddUint64(&c.stats.UnknownEvents, 1)
	} else {
		atomic.AddUint64(&c.stats.Desyncs, 1)
	}
	atomic.AddUint64(&c.stats.DiscardedBytes, uint64(discarded))
}

func (c *statsCollector) snapshot() ClientStats {
	return ClientStats{
		Calls:                atomic.LoadUint64(&c.stats.Calls),
		CallRetries:          atomic.LoadUint64(&c.stats.CallRetries),
		NoAnswers:            atomic.LoadUint64(&c.stats.NoAnswers),
		EventConnects:        atomic.LoadUint64(&c.stats.EventConnects),
		EventConnectFailures: atomic.LoadUint64(&c.stats.EventConnectFailures),
		Events:               atomic.LoadUint64(&c.stats.Events),
		Desyncs:              atomic.LoadUint64(&c.stats.Desyncs),
		UnknownEvents:        atomic.LoadUint64(&c.stats.UnknownEvents),
		DiscardedBytes:       atomic.LoadUint64(&c.stats.DiscardedBytes),
		LastEventUnix:        atomic.LoadInt64(&c.stats.LastEventUnix),
	}
}
