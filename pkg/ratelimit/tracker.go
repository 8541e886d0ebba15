package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	throttled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "onenote_throttled",
		Help: "1 while a Graph throttle window is active",
	})

	throttleCarryoverSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "onenote_throttle_carryover_seconds",
		Help:    "Time spent waiting for a throttle window recorded by an earlier request",
		Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600},
	})
)

// Tracker persists throttle windows in Redis.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	// active is set once a state is known to exist in Redis.
	active bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTracker creates a new throttle tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// SetSleep replaces the timer used by WaitIfThrottled, so the tracker
// shares a caller's clock (tests use an instant one).
func (t *Tracker) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	if sleep == nil {
		sleep = sleepContext
	}
	t.sleep = sleep
}

// GetState returns the stored state, or nil when no window was recorded.
func (t *Tracker) GetState(ctx context.Context) (*ThrottleState, error) {
	data, err := t.redis.Get(ctx, RedisKeyThrottleState).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get throttle state: %w", err)
	}

	var state ThrottleState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse throttle state: %w", err)
	}
	t.active = true
	return &state, nil
}

// RecordThrottle stores a window of length wait starting now.
func (t *Tracker) RecordThrottle(ctx context.Context, wait time.Duration) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		state = &ThrottleState{}
	}

	now := t.now()
	state.Record(wait, now)

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal throttle state: %w", err)
	}
	if err := t.redis.Set(ctx, RedisKeyThrottleState, data, state.Expiration(now)).Err(); err != nil {
		return fmt.Errorf("store throttle state in redis: %w", err)
	}

	t.active = true
	throttled.Set(1)

	t.logger.Debug().
		Int("consecutive", state.Consecutive).
		Time("throttled_until", state.ThrottledUntil).
		Msg("Throttle state recorded")

	return nil
}

// RecordSuccess clears a stored window after a request went through.
func (t *Tracker) RecordSuccess(ctx context.Context) error {
	if !t.active {
		return nil
	}
	if err := t.redis.Del(ctx, RedisKeyThrottleState).Err(); err != nil {
		return fmt.Errorf("clear throttle state: %w", err)
	}
	t.active = false
	throttled.Set(0)
	return nil
}

// WaitIfThrottled blocks until a recorded window has passed.
func (t *Tracker) WaitIfThrottled(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	now := t.now()
	if !state.IsThrottled(now) {
		return nil
	}

	wait := state.TimeUntilResume(now)
	t.logger.Warn().
		Dur("wait", wait).
		Int("consecutive", state.Consecutive).
		Time("throttled_until", state.ThrottledUntil).
		Msg("Graph throttle window still active, waiting before next request")

	throttled.Set(1)
	throttleCarryoverSeconds.Observe(wait.Seconds())
	return t.sleep(ctx, wait)
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
