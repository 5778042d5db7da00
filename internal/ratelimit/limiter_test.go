package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterEnforcesSpacing(t *testing.T) {
	l := New(2, 100*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	l.Release()

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	l.Release()
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond,
		"second acquire should wait for the minimum delay")
}

func TestLimiterHonorsContext(t *testing.T) {
	l := New(1, time.Second)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	// Slot is held; a canceled context must not block forever.
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, l.Acquire(canceled))
	l.Release()
}

func TestAdaptiveBackoffClampsAtMax(t *testing.T) {
	l := NewAdaptive(AdaptiveConfig{
		BaseDelay:     time.Second,
		MinDelay:      500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		MaxConcurrent: 2,
		BackoffFactor: 2.0,
	}, nil)

	for i := 0; i < 5; i++ {
		l.ReportFailure(true)
	}
	require.Equal(t, 10*time.Second, l.CurrentDelay(), "delay should clamp at max")
}

func TestAdaptiveRecoveryFloorsAtMin(t *testing.T) {
	l := NewAdaptive(AdaptiveConfig{
		BaseDelay:      time.Second,
		MinDelay:       900 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		MaxConcurrent:  2,
		RecoveryFactor: 0.5,
	}, nil)

	// Five consecutive successes trigger one recovery step.
	before := l.CurrentDelay()
	for i := 0; i < 5; i++ {
		l.ReportSuccess()
	}
	after := l.CurrentDelay()
	require.Less(t, after, before, "delay should decrease after sustained success")
	require.GreaterOrEqual(t, after, 900*time.Millisecond)

	// Further rounds never go below the floor.
	for round := 0; round < 3; round++ {
		for i := 0; i < 5; i++ {
			l.ReportSuccess()
		}
	}
	require.Equal(t, 900*time.Millisecond, l.CurrentDelay())
}

func TestAdaptiveFailureResetsSuccessStreak(t *testing.T) {
	l := NewAdaptive(AdaptiveConfig{
		BaseDelay:      time.Second,
		MinDelay:       100 * time.Millisecond,
		MaxDelay:       time.Minute,
		MaxConcurrent:  1,
		RecoveryFactor: 0.9,
	}, nil)

	for i := 0; i < 4; i++ {
		l.ReportSuccess()
	}
	l.ReportFailure(false)
	widened := l.CurrentDelay()

	// Four more successes are not enough for a recovery step after the
	// failure reset the streak.
	for i := 0; i < 4; i++ {
		l.ReportSuccess()
	}
	require.Equal(t, widened, l.CurrentDelay())
}

func TestAdaptiveReset(t *testing.T) {
	l := NewAdaptive(AdaptiveConfig{
		BaseDelay:     2 * time.Second,
		MinDelay:      time.Second,
		MaxDelay:      time.Minute,
		MaxConcurrent: 1,
	}, nil)

	l.ReportFailure(false)
	require.NotEqual(t, 2*time.Second, l.CurrentDelay())
	l.Reset()
	require.Equal(t, 2*time.Second, l.CurrentDelay())
}
