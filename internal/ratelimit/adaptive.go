package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hklex/lexharvest/internal/metrics"
)

// Default tuning for the adaptive limiter. Delay state is in-memory only and
// resets to BaseDelay on process restart.
const (
	defaultBackoffFactor  = 2.0
	defaultRecoveryFactor = 0.9
	// successesBeforeRecovery is how many consecutive successes are needed
	// before the delay is eased back toward MinDelay.
	successesBeforeRecovery = 5
)

// AdaptiveConfig tunes an AdaptiveLimiter.
type AdaptiveConfig struct {
	// Site labels the exported delay gauge; empty disables it.
	Site          string
	BaseDelay     time.Duration
	MinDelay      time.Duration
	MaxDelay      time.Duration
	MaxConcurrent int
	// BackoffFactor multiplies the delay on failure; doubled again when the
	// failure was a rate-limit response.
	BackoffFactor float64
	// RecoveryFactor (<1) multiplies the delay after sustained success.
	RecoveryFactor float64
}

// AdaptiveLimiter adjusts the inter-request delay from observed outcomes:
// failures widen it, sustained success narrows it. All delay state is guarded
// by a single mutex; concurrent fetch completions report through the same
// critical section.
type AdaptiveLimiter struct {
	cfg   AdaptiveConfig
	slots chan struct{}
	log   *zap.Logger

	mu           sync.Mutex
	currentDelay time.Duration
	lastRequest  time.Time
	successes    int
	failures     int
}

// NewAdaptive builds an AdaptiveLimiter starting at cfg.BaseDelay.
func NewAdaptive(cfg AdaptiveConfig, log *zap.Logger) *AdaptiveLimiter {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = defaultBackoffFactor
	}
	if cfg.RecoveryFactor <= 0 || cfg.RecoveryFactor >= 1 {
		cfg.RecoveryFactor = defaultRecoveryFactor
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdaptiveLimiter{
		cfg:          cfg,
		slots:        make(chan struct{}, cfg.MaxConcurrent),
		log:          log,
		currentDelay: cfg.BaseDelay,
	}
}

// Acquire blocks until a slot is free and the current delay has elapsed since
// the previous request began. The delay wait happens under the state mutex so
// spacing is enforced globally across slots, not per slot.
func (l *AdaptiveLimiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("adaptive slot wait canceled: %w", ctx.Err())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	wait := l.currentDelay - time.Since(l.lastRequest)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			<-l.slots
			return fmt.Errorf("adaptive delay wait canceled: %w", ctx.Err())
		}
	}
	l.lastRequest = time.Now()
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (l *AdaptiveLimiter) Release() {
	select {
	case <-l.slots:
	default:
	}
}

// ReportSuccess records a successful request. After five consecutive
// successes the delay is multiplied by RecoveryFactor, floored at MinDelay,
// and the streak resets.
func (l *AdaptiveLimiter) ReportSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.successes++
	l.failures = 0
	if l.successes < successesBeforeRecovery {
		return
	}
	newDelay := time.Duration(float64(l.currentDelay) * l.cfg.RecoveryFactor)
	if newDelay < l.cfg.MinDelay {
		newDelay = l.cfg.MinDelay
	}
	if newDelay < l.currentDelay {
		l.log.Debug("easing request delay",
			zap.Duration("old_delay", l.currentDelay),
			zap.Duration("new_delay", newDelay),
		)
		l.currentDelay = newDelay
		l.publishDelay()
	}
	l.successes = 0
}

// ReportFailure records a failed request and widens the delay by
// BackoffFactor, doubled again when the server signalled rate limiting,
// capped at MaxDelay.
func (l *AdaptiveLimiter) ReportFailure(rateLimited bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures++
	l.successes = 0

	factor := l.cfg.BackoffFactor
	if rateLimited {
		factor *= 2
	}
	newDelay := time.Duration(float64(l.currentDelay) * factor)
	if newDelay > l.cfg.MaxDelay {
		newDelay = l.cfg.MaxDelay
	}
	l.log.Warn("widening request delay after failure",
		zap.Duration("old_delay", l.currentDelay),
		zap.Duration("new_delay", newDelay),
		zap.Bool("rate_limited", rateLimited),
		zap.Int("consecutive_failures", l.failures),
	)
	l.currentDelay = newDelay
	l.publishDelay()
}

// publishDelay exports the current delay. Callers hold l.mu.
func (l *AdaptiveLimiter) publishDelay() {
	if l.cfg.Site != "" {
		metrics.SetAdaptiveDelay(l.cfg.Site, l.currentDelay)
	}
}

// CurrentDelay reports the delay currently enforced between requests.
func (l *AdaptiveLimiter) CurrentDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentDelay
}

// Reset restores the delay to BaseDelay and clears both streaks.
func (l *AdaptiveLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentDelay = l.cfg.BaseDelay
	l.successes = 0
	l.failures = 0
	l.publishDelay()
}
