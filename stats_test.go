package telldus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsCollector(t *testing.T) {
	c := newStatsCollector()

	c.recordCall()
	c.recordCall()
	c.recordRetry()
	c.recordNoAnswer()
	c.recordConnect(true)
	c.recordConnect(false)
	c.recordConnect(false)
	c.recordEvent()
	c.recordDesync(false, 10)
	c.recordDesync(true, 5)

	stats := c.snapshot()
	assert.NotZero(t, stats.LastEventUnix)
	assert.WithinDuration(t, time.Now(), stats.LastEvent(), 2*time.Second)

	stats.LastEventUnix = 0
	assert.Equal(t, ClientStats{
		Calls:                2,
		CallRetries:          1,
		NoAnswers:            1,
		EventConnects:        1,
		EventConnectFailures: 2,
		Events:               1,
		Desyncs:              1,
		UnknownEvents:        1,
		DiscardedBytes:       15,
	}, stats)
}

func TestClientStats_LastEvent(t *testing.T) {
	assert.True(t, ClientStats{}.LastEvent().IsZero())
	assert.Equal(t, int64(1700000000), ClientStats{LastEventUnix: 1700000000}.LastEvent().Unix())
}

func TestStatsCollector_Concurrent(t *testing.T) {
	c := newStatsCollector()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.recordCall()
				c.recordEvent()
			}
		}()
	}
	wg.Wait()

	stats := c.snapshot()
	assert.Equal(t, uint64(1000), stats.Calls)
	assert.Equal(t, uint64(1000), stats.Events)
}
