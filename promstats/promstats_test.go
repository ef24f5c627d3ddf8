package promstats

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/telldus"
)

type staticSource struct {
	stats telldus.ClientStats
}

func (s staticSource) Stats() telldus.ClientStats { return s.stats }

type breakerSource struct {
	staticSource
	state gobreaker.State
}

func (s breakerSource) CircuitBreakerState() (gobreaker.State, bool) { return s.state, true }

func TestCollector(t *testing.T) {
	source := staticSource{stats: telldus.ClientStats{
		Calls:                12,
		CallRetries:          2,
		NoAnswers:            1,
		EventConnects:        3,
		EventConnectFailures: 4,
		Events:               100,
		Desyncs:              1,
		UnknownEvents:        2,
		DiscardedBytes:       57,
	}}

	expected := `
# HELP telldus_command_calls_total Total command calls
# TYPE telldus_command_calls_total counter
telldus_command_calls_total 12
# HELP telldus_event_connects_total Connection attempts to the event endpoint
# TYPE telldus_event_connects_total counter
telldus_event_connects_total{result="failure"} 4
telldus_event_connects_total{result="success"} 3
# HELP telldus_event_desyncs_total Event stream desynchronizations
# TYPE telldus_event_desyncs_total counter
telldus_event_desyncs_total{reason="malformed"} 1
telldus_event_desyncs_total{reason="unknown_kind"} 2
# HELP telldus_events_total Events decoded and dispatched
# TYPE telldus_events_total counter
telldus_events_total 100
`
	err := testutil.CollectAndCompare(NewCollector(source, Opts{}), strings.NewReader(expected),
		"telldus_command_calls_total",
		"telldus_event_connects_total",
		"telldus_event_desyncs_total",
		"telldus_events_total",
	)
	require.NoError(t, err)

	// No breaker and no event yet: neither gauge
	assert.Equal(t, 9, testutil.CollectAndCount(NewCollector(source, Opts{})))
}

func TestCollector_LastEvent(t *testing.T) {
	source := staticSource{stats: telldus.ClientStats{LastEventUnix: 1700000000}}

	expected := `
# HELP telldus_last_event_timestamp_seconds Unix time of the last dispatched event
# TYPE telldus_last_event_timestamp_seconds gauge
telldus_last_event_timestamp_seconds 1.7e+09
`
	err := testutil.CollectAndCompare(NewCollector(source, Opts{}), strings.NewReader(expected),
		"telldus_last_event_timestamp_seconds")
	require.NoError(t, err)
}

func TestCollector_BreakerState(t *testing.T) {
	source := breakerSource{state: gobreaker.StateOpen}

	expected := `
# HELP home_circuit_breaker_state Command circuit breaker state (0=closed, 1=half-open, 2=open)
# TYPE home_circuit_breaker_state gauge
home_circuit_breaker_state{daemon="attic"} 2
`
	collector := NewCollector(source, Opts{
		Namespace:   "home",
		ConstLabels: prometheus.Labels{"daemon": "attic"},
	})
	err := testutil.CollectAndCompare(collector, strings.NewReader(expected), "home_circuit_breaker_state")
	require.NoError(t, err)
}

func TestCollector_Register(t *testing.T) {
	client, err := telldus.NewClient(telldus.Config{
		NewCircuitBreaker: telldus.NewCircuitBreakerConfig(1, 0, 0),
	})
	require.NoError(t, err)

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(NewCollector(client, Opts{})))

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "telldus_command_no_answers_total")
	assert.Contains(t, names, "telldus_circuit_breaker_state")
}
