// Package ratelimit provides the outbound token bucket that paces every
// call made against the remote platform API.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	syncdomain "github.com/storesync/backend/internal/domain/sync"
)

// Stats contains counters about limiter usage.
type Stats struct {
	// TotalAcquired is the total number of successful acquisitions.
	TotalAcquired int64
	// TotalTimedOut is the number of acquisitions abandoned after the wait bound.
	TotalTimedOut int64
	// CurrentRPS is the current configured requests per second.
	CurrentRPS float64
	// AvgWaitTime is the average time spent waiting in Acquire calls.
	AvgWaitTime time.Duration
}

// Limiter is a token bucket limiter with a bounded wait. Callers block in
// Acquire until a token is available; a caller that would wait longer than
// the configured bound fails with ErrRateLimited instead of queueing forever.
//
// Thread Safety: Safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
	maxWait time.Duration
	rps     float64
	mu      sync.RWMutex

	// Statistics
	totalAcquired atomic.Int64
	totalTimedOut atomic.Int64
	totalWaitTime atomic.Int64 // in nanoseconds
	waitCount     atomic.Int64
}

var _ syncdomain.RateGate = (*Limiter)(nil)

// New creates a limiter emitting rps tokens per second with the given burst
// capacity. maxWait bounds how long a single Acquire call may block; zero
// means callers wait only as long as their own context allows.
func New(rps float64, burst int, maxWait time.Duration) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		maxWait: maxWait,
		rps:     rps,
	}
}

// Acquire blocks until a token is available, the wait bound elapses, or the
// caller's context is cancelled. A wait bound expiry is reported as
// ErrRateLimited so callers classify it as a retryable failure.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx := ctx
	if l.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	start := time.Now()
	if err := l.limiter.Wait(waitCtx); err != nil {
		// Distinguish caller cancellation from the wait bound expiring.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.totalTimedOut.Add(1)
		return fmt.Errorf("%w: no token within %s", syncdomain.ErrRateLimited, l.maxWait)
	}

	l.totalAcquired.Add(1)
	l.totalWaitTime.Add(int64(time.Since(start)))
	l.waitCount.Add(1)
	return nil
}

// TryAcquire attempts to take a token without blocking.
func (l *Limiter) TryAcquire() bool {
	if l.limiter.Allow() {
		l.totalAcquired.Add(1)
		return true
	}
	return false
}

// SetRate dynamically adjusts the emission rate.
func (l *Limiter) SetRate(rps float64) {
	if rps <= 0 {
		rps = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rps = rps
	l.limiter.SetLimit(rate.Limit(rps))
}

// CurrentRate returns the current emission rate in requests per second.
func (l *Limiter) CurrentRate() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rps
}

// Stats returns current statistics about limiter usage.
func (l *Limiter) Stats() Stats {
	acquired := l.totalAcquired.Load()
	timedOut := l.totalTimedOut.Load()
	totalWait := l.totalWaitTime.Load()
	waitCnt := l.waitCount.Load()

	var avgWait time.Duration
	if waitCnt > 0 {
		avgWait = time.Duration(totalWait / waitCnt)
	}

	l.mu.RLock()
	currentRPS := l.rps
	l.mu.RUnlock()

	return Stats{
		TotalAcquired: acquired,
		TotalTimedOut: timedOut,
		CurrentRPS:    currentRPS,
		AvgWaitTime:   avgWait,
	}
}
