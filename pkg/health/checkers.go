package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is a backing store that can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports unhealthy when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// GaugeCheck reports unhealthy when value exceeds threshold. name describes
// the value in the failure message.
func GaugeCheck(name string, value func() int, threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := value(); n > threshold {
			return errors.Errorf("%s %d exceeds threshold %d", name, n, threshold)
		}
		return nil
	}
}

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds
// threshold.
func GoroutineCountCheck(threshold int) CheckFunc {
	return GaugeCheck("goroutine count", runtime.NumGoroutine, threshold)
}

// GCMaxPauseCheck reports unhealthy when a recent GC pause exceeds threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}
