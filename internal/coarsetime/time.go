// Package coarsetime is a clock for hot paths that only need a timestamp to
// within a tick. The first call to Now starts a goroutine that refreshes the
// cached time every tick for the life of the process.
package coarsetime

import (
	"sync"
	"sync/atomic"
	"time"
)

const tick = 100 * time.Millisecond

var (
	now   atomic.Int64
	start sync.Once
)

func run() {
	now.Store(time.Now().UnixNano())

	ticker := time.NewTicker(tick)
	go func() {
		for t := range ticker.C {
			now.Store(t.UnixNano())
		}
	}()
}

// Now returns the cached time. It lags the wall clock by at most one tick.
func Now() time.Time {
	start.Do(run)
	return time.Unix(0, now.Load())
}
