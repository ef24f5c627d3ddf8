package telldus

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pior/telldus/wire"
)

// CircuitBreaker guards command calls. *gobreaker.CircuitBreaker[*wire.Buffer]
// satisfies it.
type CircuitBreaker interface {
	Execute(req func() (*wire.Buffer, error)) (*wire.Buffer, error)
	State() gobreaker.State
}

// NewCircuitBreakerConfig returns a function that creates circuit breakers
// for a command endpoint. This is a helper for common use cases.
//
// The breaker opens when at least 3 calls were made in the interval and 60%
// of them got no answer. While open, calls fail immediately with ErrNoAnswer.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(addr string) CircuitBreaker {
	return func(addr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        addr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[*wire.Buffer](settings)
	}
}
