package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RatePolicy bounds LLM usage from outside the engines: a sustained
// request rate with burst, and a cap on concurrent in-flight calls.
type RatePolicy struct {
	// RequestsPerSecond is the sustained rate (default 5).
	RequestsPerSecond float64

	// Burst is the maximum burst size (default 2).
	Burst int

	// MaxConcurrent caps in-flight calls (default 4).
	MaxConcurrent int
}

// RateLimitedCaller decorates a Caller with a token-bucket limiter and a
// concurrency semaphore. Waiting honors context cancellation, so a
// cancelled recognize/enrich call never blocks on the limiter.
type RateLimitedCaller struct {
	inner   Caller
	limiter *rate.Limiter
	sem     chan struct{}
}

// NewRateLimitedCaller wraps a Caller with the given policy. Zero policy
// fields fall back to defaults.
func NewRateLimitedCaller(inner Caller, policy RatePolicy) *RateLimitedCaller {
	if policy.RequestsPerSecond <= 0 {
		policy.RequestsPerSecond = 5
	}
	if policy.Burst <= 0 {
		policy.Burst = 2
	}
	if policy.MaxConcurrent <= 0 {
		policy.MaxConcurrent = 4
	}
	return &RateLimitedCaller{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), policy.Burst),
		sem:     make(chan struct{}, policy.MaxConcurrent),
	}
}

// Call waits for limiter and concurrency slots, then delegates.
func (c *RateLimitedCaller) Call(ctx context.Context, prompt string, opts CallOptions) ([]Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return c.inner.Call(ctx, prompt, opts)
}

// Model returns the wrapped caller's model name.
func (c *RateLimitedCaller) Model() string {
	return c.inner.Model()
}

var _ Caller = (*RateLimitedCaller)(nil)
