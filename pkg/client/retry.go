package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onenote_rate_limit_waits_total",
		Help: "Total number of backoff waits caused by HTTP 429",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "onenote_rate_limit_wait_seconds",
		Help:    "Backoff duration chosen after HTTP 429",
		Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onenote_retry_exhausted_total",
		Help: "Total number of requests that reached the configured attempt cap",
	})
)

// DefaultInitialWait is the first backoff after a 429. Graph sends no
// Retry-After header for OneNote requests.
const DefaultInitialWait = 15 * time.Minute

// DefaultMultiplier doubles the wait on each consecutive 429.
const DefaultMultiplier = 2.0

// BackoffPolicy retries rate-limited requests with exponential backoff.
// Only errors matching ErrRateLimited are retried; anything else is returned
// from Do unchanged.
type BackoffPolicy struct {
	// InitialWait is the wait after the first 429. Zero selects DefaultInitialWait.
	InitialWait time.Duration

	// Multiplier grows the wait per consecutive 429. Zero selects DefaultMultiplier.
	Multiplier float64

	// MaxWait caps a single wait. Zero means no cap.
	MaxWait time.Duration

	// MaxAttempts caps attempts including the first. Zero retries until success.
	MaxAttempts int

	// Sleep waits for d or until ctx ends. Nil uses a timer honouring ctx.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnWait, when set, is called before each wait.
	OnWait func(ctx context.Context, attempt int, wait time.Duration)

	// Logger receives backoff events. Nil uses the global logger.
	Logger *zerolog.Logger
}

// DefaultBackoffPolicy waits 15m, 30m, 1h, ... with no cap and no attempt limit.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialWait: DefaultInitialWait,
		Multiplier:  DefaultMultiplier,
	}
}

func (p BackoffPolicy) validate() error {
	if p.InitialWait < 0 {
		return fmt.Errorf("backoff initial wait must be >= 0 (got %v)", p.InitialWait)
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1 (got %v)", p.Multiplier)
	}
	if p.MaxWait < 0 {
		return fmt.Errorf("backoff max wait must be >= 0 (got %v)", p.MaxWait)
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("backoff max attempts must be >= 0 (got %d)", p.MaxAttempts)
	}
	return nil
}

// Wait returns the backoff after the given failed attempt (1-based).
func (p BackoffPolicy) Wait(attempt int) time.Duration {
	initial := p.InitialWait
	if initial == 0 {
		initial = DefaultInitialWait
	}
	multiplier := p.Multiplier
	if multiplier == 0 {
		multiplier = DefaultMultiplier
	}
	if attempt < 1 {
		attempt = 1
	}

	d := time.Duration(math.MaxInt64)
	if wait := float64(initial) * math.Pow(multiplier, float64(attempt-1)); wait < math.MaxInt64 {
		d = time.Duration(wait)
	}
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	return d
}

// Do calls fn until it succeeds, fails with an error other than
// ErrRateLimited, the attempt cap is reached, or ctx ends during a wait.
func (p BackoffPolicy) Do(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := p.logger()

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after rate limit backoff")
			}
			return nil
		}

		if !errors.Is(err, ErrRateLimited) {
			return err
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			retryExhaustedTotal.Inc()
			logger.Error().
				Int("max_attempts", p.MaxAttempts).
				Msg("Rate limit retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr)
		}

		wait := p.Wait(attempt)
		rateLimitWaitsTotal.Inc()
		rateLimitWaitSeconds.Observe(wait.Seconds())

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Time("resume_at", time.Now().Add(wait)).
			Msg("Request rate limit hit, waiting before retry")

		if p.OnWait != nil {
			p.OnWait(ctx, attempt, wait)
		}

		if err := sleep(ctx, wait); err != nil {
			logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during rate limit backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}
}

func (p BackoffPolicy) logger() *zerolog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	l := log.With().Str("component", "backoff").Logger()
	return &l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
