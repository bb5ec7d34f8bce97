// Package resilience wraps outbound calls with circuit breaking and retry.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"complaint_triage/pkg/logger"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = gobreaker.ErrOpenState

// BreakerConfig mirrors the gobreaker knobs that callers tune.
type BreakerConfig struct {
	Name string
	// MaxRequests allowed through in half-open state.
	MaxRequests uint32
	// Interval resets closed-state counts.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker outright.
	ConsecutiveFailures uint32
	// FailureRatio trips once MinRequests have been seen.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig is tuned for a third-party HTTP API.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         3,                // half-open 상태에서 허용할 요청 수
		Interval:            60 * time.Second, // closed 상태 카운터 리셋 간격
		Timeout:             30 * time.Second, // open 유지 시간
		ConsecutiveFailures: 5,
		FailureRatio:        0.6,
		MinRequests:         10,
	}
}

// NewBreaker builds a gobreaker instance that logs state transitions.
func NewBreaker(cfg BreakerConfig, log *logger.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = logger.Default()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests || counts.Requests == 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithField("breaker", name).Warn("circuit breaker %s -> %s", from, to)
		},
	})
}

// Call runs fn through cb and returns its typed result.
func Call[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	v, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	res, _ := v.(T)
	return res, nil
}

// =============================================================================
// Retry
// =============================================================================

// RetryPolicy is exponential backoff with jitter.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Permanent marks an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Retry runs fn until it succeeds, returns a Permanent error, the attempts
// run out, or ctx is done. The last error is returned.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}

	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm *Permanent
		if errors.As(err, &perm) || errors.Is(err, ErrOpen) {
			return err
		}
		if attempt == p.Attempts-1 {
			break
		}

		delay := p.BaseDelay << attempt
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		// ±25% jitter
		delay += time.Duration(rand.Int63n(int64(delay)/2+1)) - delay/4

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}
