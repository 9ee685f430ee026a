// Package lock holds the single process-wide "connect_volume" lock: at most
// one iSCSI connect or disconnect may run on the host at any instant, across
// every driver instance in the process. A map from (portal, iqn) to a mutex
// looks tempting but is wrong here — correctness of the session-list parse
// in pkg/connectors requires global exclusion, so this stays a single
// package-level value.
package lock

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ConnectVolume is acquired for the duration of every ISCSIDriver.Connect
// and ISCSIDriver.Disconnect critical section. A weighted semaphore of
// size 1 gives the same mutual-exclusion guarantee as a sync.Mutex while
// accepting a context, so a caller can bound how long it waits for the
// lock.
var ConnectVolume = semaphore.NewWeighted(1)

// Acquire blocks until ConnectVolume is available or ctx is done, and
// returns a release function. Callers should defer the release
// immediately:
//
//	release, err := lock.Acquire(ctx)
//	if err != nil { return err }
//	defer release()
func Acquire(ctx context.Context) (func(), error) {
	if err := ConnectVolume.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { ConnectVolume.Release(1) }, nil
}
