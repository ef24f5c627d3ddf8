// Package promstats exports telldus client statistics to Prometheus.
//
// The collector reads a statistics snapshot on every scrape, so the client
// keeps its lock-free counters and nothing is updated on the hot path:
//
//	client, _ := telldus.NewClient(telldus.Config{})
//	prometheus.MustRegister(promstats.NewCollector(client, promstats.Opts{}))
package promstats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/telldus"
)

// StatsSource provides statistics snapshots. *telldus.Client,
// *telldus.CommandChannel and *telldus.EventChannel satisfy it.
type StatsSource interface {
	Stats() telldus.ClientStats
}

// BreakerSource is optionally implemented by a StatsSource that has a
// circuit breaker. *telldus.Client implements it.
type BreakerSource interface {
	CircuitBreakerState() (gobreaker.State, bool)
}

// Opts configures metric names.
type Opts struct {
	// Namespace prefixes every metric name. Default: "telldus".
	Namespace string

	// ConstLabels are added to every metric, for example to tell several
	// daemons apart.
	ConstLabels prometheus.Labels
}

// Collector is a prometheus.Collector over a StatsSource.
type Collector struct {
	source StatsSource

	calls          *prometheus.Desc
	callRetries    *prometheus.Desc
	noAnswers      *prometheus.Desc
	eventConnects  *prometheus.Desc
	events         *prometheus.Desc
	desyncs        *prometheus.Desc
	discardedBytes *prometheus.Desc
	lastEvent      *prometheus.Desc
	breakerState   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for source. Register it on a registry.
func NewCollector(source StatsSource, opts Opts) *Collector {
	ns := opts.Namespace
	if ns == "" {
		ns = "telldus"
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(ns, "", name), help, labels, opts.ConstLabels)
	}

	return &Collector{
		source:         source,
		calls:          desc("command_calls_total", "Total command calls"),
		callRetries:    desc("command_retries_total", "Command calls that needed a second attempt"),
		noAnswers:      desc("command_no_answers_total", "Command calls that got no answer from the daemon"),
		eventConnects:  desc("event_connects_total", "Connection attempts to the event endpoint", "result"),
		events:         desc("events_total", "Events decoded and dispatched"),
		desyncs:        desc("event_desyncs_total", "Event stream desynchronizations", "reason"),
		discardedBytes: desc("event_discarded_bytes_total", "Bytes dropped by event stream recovery"),
		lastEvent:      desc("last_event_timestamp_seconds", "Unix time of the last dispatched event"),
		breakerState:   desc("circuit_breaker_state", "Command circuit breaker state (0=closed, 1=half-open, 2=open)"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.calls
	ch <- c.callRetries
	ch <- c.noAnswers
	ch <- c.eventConnects
	ch <- c.events
	ch <- c.desyncs
	ch <- c.discardedBytes
	ch <- c.lastEvent
	ch <- c.breakerState
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.calls, s.Calls)
	counter(c.callRetries, s.CallRetries)
	counter(c.noAnswers, s.NoAnswers)
	counter(c.eventConnects, s.EventConnects, "success")
	counter(c.eventConnects, s.EventConnectFailures, "failure")
	counter(c.events, s.Events)
	counter(c.desyncs, s.Desyncs, "malformed")
	counter(c.desyncs, s.UnknownEvents, "unknown_kind")
	counter(c.discardedBytes, s.DiscardedBytes)

	if s.LastEventUnix > 0 {
		ch <- prometheus.MustNewConstMetric(c.lastEvent, prometheus.GaugeValue, float64(s.LastEventUnix))
	}

	if bs, ok := c.source.(BreakerSource); ok {
		if state, ok := bs.CircuitBreakerState(); ok {
			ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue, float64(state))
		}
	}
}
