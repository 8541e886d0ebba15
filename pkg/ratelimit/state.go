// Package ratelimit keeps the Graph throttle window visible across runs and
// paces outgoing requests.
//
// Graph answers HTTP 429 for OneNote without a Retry-After hint. The client's
// backoff policy decides how long to wait; this package records that window
// in Redis so that a restarted dump, or a second dump sharing the same
// account, waits it out instead of immediately hitting the limit again.
package ratelimit

import (
	"time"
)

// RedisKeyThrottleState holds the JSON encoded ThrottleState.
const RedisKeyThrottleState = "onenote:throttle:state"

// stateRetention is how long a state outlives its throttle window in Redis.
const stateRetention = time.Hour

// ThrottleState is the most recent rate limit window reported by Graph.
type ThrottleState struct {
	// Consecutive counts 429 responses since the last successful request.
	Consecutive int `json:"consecutive"`

	// LastWait is the backoff chosen for the most recent 429.
	LastWait time.Duration `json:"last_wait"`

	// ThrottledUntil is when the current backoff ends.
	ThrottledUntil time.Time `json:"throttled_until"`

	// LastUpdate is when the state was written.
	LastUpdate time.Time `json:"last_update"`
}

// Record registers a 429 answered with a wait of the given length.
func (s *ThrottleState) Record(wait time.Duration, now time.Time) {
	s.Consecutive++
	s.LastWait = wait
	s.ThrottledUntil = now.Add(wait)
	s.LastUpdate = now
}

// IsThrottled reports whether the window is still open at now.
func (s *ThrottleState) IsThrottled(now time.Time) bool {
	return now.Before(s.ThrottledUntil)
}

// TimeUntilResume returns the remaining wait, or 0 once the window passed.
func (s *ThrottleState) TimeUntilResume(now time.Time) time.Duration {
	d := s.ThrottledUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Expiration is the Redis TTL for the state key.
func (s *ThrottleState) Expiration(now time.Time) time.Duration {
	return s.TimeUntilResume(now) + stateRetention
}
