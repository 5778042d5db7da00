// Package ratelimit bounds request concurrency and spacing against the
// harvested sites. Both sites are operated by small teams on fragile
// infrastructure, so the total request rate is capped globally, not per
// concurrency slot.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limiter caps in-flight requests with a slot pool and enforces a fixed
// minimum delay between request starts across all slots.
type Limiter struct {
	slots chan struct{}
	pace  *rate.Limiter
}

// New builds a Limiter with maxConcurrent slots and minDelay spacing.
func New(maxConcurrent int, minDelay time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	pacing := rate.Inf
	if minDelay > 0 {
		pacing = rate.Every(minDelay)
	}
	return &Limiter{
		slots: make(chan struct{}, maxConcurrent),
		pace:  rate.NewLimiter(pacing, 1),
	}
}

// Acquire blocks until a concurrency slot is free and the global pacing
// allows another request. The slot is held until Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("rate limit slot wait canceled: %w", ctx.Err())
	}
	if err := l.pace.Wait(ctx); err != nil {
		<-l.slots
		return fmt.Errorf("rate limit pace wait: %w", err)
	}
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.slots:
	default:
	}
}

// ReportSuccess is a no-op; the fixed limiter does not adapt.
func (l *Limiter) ReportSuccess() {}

// ReportFailure is a no-op; the fixed limiter does not adapt.
func (l *Limiter) ReportFailure(bool) {}
