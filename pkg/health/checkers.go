package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by pgxpool.Pool and anything else with a Ping method.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabasePingCheck returns a readiness check that pings the database.
func DatabasePingCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping database")
		}
		return nil
	}
}

// GoroutineCountCheck returns a liveness check that fails when the goroutine
// count exceeds threshold. Useful for catching leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// MaxClockSkewCheck returns a liveness check that fails when now deviates
// from the monotonic clock by more than skew. It guards against wall-clock
// jumps that would break promotion date-window evaluation.
func MaxClockSkewCheck(skew time.Duration) CheckFunc {
	start := time.Now()
	return func(_ context.Context) error {
		elapsedWall := time.Since(start.Round(0))
		elapsedMono := time.Since(start)
		diff := elapsedWall - elapsedMono
		if diff < 0 {
			diff = -diff
		}
		if diff > skew {
			return errors.Errorf("wall clock drifted %s from monotonic clock", diff)
		}
		return nil
	}
}
