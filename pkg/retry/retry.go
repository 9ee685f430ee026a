// Package retry provides a generic retry-with-quadratic-backoff utility.
// The backoff itself is generic and has no iSCSI-specific knowledge, so it
// is exposed as a standalone utility rather than a driver internal. Its
// shape mirrors a context-aware, klog-instrumented single functional
// entrypoint: attempt indices 1..N, sleeping attempt² seconds between
// misses.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"
)

// ErrBudgetExhausted is returned when probe never succeeds within attempts
// tries.
var ErrBudgetExhausted = errors.New("retry: attempt budget exhausted")

// Clock abstracts time.Sleep so tests can run the real schedule without
// actually waiting; the zero value uses time.Sleep.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock sleeps for real, but honors context cancellation.
type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RealClock is the production Clock.
var RealClock Clock = realClock{}

// QuadraticBackoff calls probe for attempt = 1..attempts. probe reports
// whether the condition it's polling for was observed. On a miss that
// isn't the last attempt, QuadraticBackoff sleeps attempt² seconds before
// trying again. It returns nil as soon as probe reports ok=true, propagates
// any error probe returns, and returns ErrBudgetExhausted if the attempt
// budget is exhausted without success.
func QuadraticBackoff(ctx context.Context, clock Clock, attempts int, operation string, probe func(attempt int) (ok bool, err error)) error {
	if clock == nil {
		clock = RealClock
	}
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := probe(attempt)
		if err != nil {
			return fmt.Errorf("retry: %s attempt %d: %w", operation, attempt, err)
		}
		if ok {
			if attempt > 1 {
				klog.V(4).Infof("retry: %s succeeded on attempt %d/%d", operation, attempt, attempts)
			}
			return nil
		}

		if attempt == attempts {
			break
		}

		wait := time.Duration(attempt*attempt) * time.Second
		klog.V(4).Infof("retry: %s missed on attempt %d/%d, sleeping %s", operation, attempt, attempts, wait)
		if err := clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %s after %d attempts", ErrBudgetExhausted, operation, attempts)
}
