package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call to
// prevent cascading failures against an unhealthy provider.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker tunables.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trips the
	// circuit (default 3).
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing probe
	// calls (default 30s).
	Timeout time.Duration

	// HalfOpenMaxCalls is the number of probe calls allowed in half-open
	// state (default 2).
	HalfOpenMaxCalls uint32
}

// Breaker wraps gobreaker around provider calls. Closed passes calls
// through; MaxFailures consecutive failures open the circuit; after
// Timeout, probe calls decide whether it closes again.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker creates a circuit breaker with defaults.
func NewBreaker() *Breaker {
	return NewBreakerWithConfig(BreakerConfig{})
}

// NewBreakerWithConfig creates a circuit breaker with custom tunables.
// Zero values fall back to defaults.
func NewBreakerWithConfig(config BreakerConfig) *Breaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxCalls == 0 {
		config.HalfOpenMaxCalls = 2
	}

	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "llm",
			MaxRequests: config.HalfOpenMaxCalls,
			Timeout:     config.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
		}),
	}
}

// Execute runs fn through the breaker, honoring context cancellation. An
// open circuit returns ErrCircuitOpen without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := b.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return result, err
}

// State reports the breaker state as "closed", "open", or "half-open".
func (b *Breaker) State() string {
	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
