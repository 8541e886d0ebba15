package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer spaces requests to at most a fixed rate. The zero value and a nil
// *Pacer never block.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer returns a pacer allowing requestsPerSecond with a burst of one.
// A non-positive rate disables pacing.
func NewPacer(requestsPerSecond float64) *Pacer {
	if requestsPerSecond <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// Enabled reports whether the pacer limits anything.
func (p *Pacer) Enabled() bool {
	return p != nil && p.limiter != nil
}

// Wait blocks until the next request may be sent.
func (p *Pacer) Wait(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.limiter.Wait(ctx)
}
