package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/zkcredit/internal/config"
)

// BackoffFrom converts retry settings to a Backoff.
func BackoffFrom(c config.RetryConfig) Backoff {
	return Backoff{
		Attempts:   c.MaxAttempts,
		Initial:    time.Duration(c.InitialBackoffMs) * time.Millisecond,
		Max:        time.Duration(c.MaxBackoffMs) * time.Millisecond,
		Multiplier: c.Multiplier,
		Jitter:     c.JitterFraction,
	}
}

// BreakerFrom converts circuit settings to a BreakerConfig. Only transient
// errors count as failures, so a bad request does not trip the breaker.
func BreakerFrom(c config.CircuitConfig) BreakerConfig {
	return BreakerConfig{
		FailureThreshold: c.FailureThreshold,
		ResetTimeout:     time.Duration(c.ResetTimeoutSecs) * time.Second,
		Counts:           IsTransient,
	}
}

// Guard combines retries with a breaker around one upstream service. Every
// attempt passes through the breaker; an open breaker ends the retries.
type Guard struct {
	service string
	backoff Backoff
	breaker *Breaker
}

// NewGuard creates a Guard that logs retries and breaker transitions.
func NewGuard(service string, retry config.RetryConfig, circuit config.CircuitConfig) *Guard {
	bc := BreakerFrom(circuit)
	bc.OnChange = func(from, to State) {
		zap.L().Warn("circuit breaker state change",
			zap.String("service", service),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return &Guard{
		service: service,
		backoff: BackoffFrom(retry),
		breaker: NewBreaker(bc),
	}
}

// Status is a point-in-time view of a guard's breaker.
type Status struct {
	Service  string `json:"service"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// Status reports the breaker state for health checks.
func (g *Guard) Status() Status {
	return Status{
		Service:  g.service,
		State:    g.breaker.State().String(),
		Failures: g.breaker.Failures(),
	}
}

// Call runs fn for the named operation under the guard.
func Call[T any](ctx context.Context, g *Guard, operation string, fn func(context.Context) (T, error)) (T, error) {
	b := g.backoff
	b.OnRetry = LogRetry(g.service, operation)
	return Retry(ctx, b, func(ctx context.Context) (T, error) {
		return Run(ctx, g.breaker, fn)
	})
}
