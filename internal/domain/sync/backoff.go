package sync

import (
	"math/rand"
	"time"
)

// Backoff computes retry delays: base × 2^(attempt-1), capped, with a
// uniform ± jitter fraction so a burst of failures does not retry in
// lockstep. Delays are data, not timers: the retry scanner compares
// lastAttempt + Delay(n) against the clock, so eligibility survives
// process restarts.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

// DefaultBackoff returns the standard retry schedule
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   30 * time.Second,
		Max:    30 * time.Minute,
		Jitter: 0.2,
	}
}

// Delay returns the jittered delay before retry number attempt (1-based)
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.BaseDelay(attempt)
	if b.Jitter <= 0 {
		return d
	}
	jitterRange := float64(d) * b.Jitter
	jitterValue := (rand.Float64()*2 - 1) * jitterRange
	return time.Duration(float64(d) + jitterValue)
}

// BaseDelay returns the un-jittered delay before retry number attempt
func (b Backoff) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 30 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// NextEligibleAt computes the earliest next try after a failure at the
// given time and consecutive attempt count.
func (b Backoff) NextEligibleAt(failedAt time.Time, attempt int) time.Time {
	return failedAt.Add(b.Delay(attempt))
}
