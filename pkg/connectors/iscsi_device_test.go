package connectors

import (
	"context"
	"testing"
	"time"

	"github.com/novahost/blockattach/pkg/config"
)

func TestDeviceNodePath(t *testing.T) {
	got := deviceNodePath("10.0.0.1:3260", "iqn.test:1", 0)
	want := "/dev/disk/by-path/ip-10.0.0.1:3260-iscsi-iqn.test:1-lun-0"
	if got != want {
		t.Errorf("deviceNodePath() = %q, want %q", got, want)
	}
}

func TestExtractIQN(t *testing.T) {
	got := extractIQN("ip-10.0.0.1:3260-iscsi-iqn.2020-01.example:target1-lun-0")
	want := "iqn.2020-01.example:target1"
	if got != want {
		t.Errorf("extractIQN() = %q, want %q", got, want)
	}
	if got := extractIQN("not-a-recognized-entry"); got != unknownIQN {
		t.Errorf("extractIQN() = %q, want %q", got, unknownIQN)
	}
}

func TestMultipathDeviceNameFiltersWWIDProbeLines(t *testing.T) {
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		return "scsi_id failed, using /dev/sdx\nmpatha (3600) dm-0 LIO-ORG,block0\n", "", 0
	}}

	d := &ISCSIDriver{Executor: exec}
	name, ok := d.multipathDeviceName(context.Background(), "/dev/sdx")
	if !ok {
		t.Fatal("multipathDeviceName() ok = false, want true")
	}
	if name != "/dev/mapper/mpatha" {
		t.Errorf("multipathDeviceName() = %q, want %q", name, "/dev/mapper/mpatha")
	}
}

func TestMultipathDeviceNameNoMatch(t *testing.T) {
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		return "", "", 1
	}}

	d := &ISCSIDriver{Executor: exec}
	if _, ok := d.multipathDeviceName(context.Background(), "/dev/sdx"); ok {
		t.Error("multipathDeviceName() ok = true, want false when multipath -ll fails")
	}
}

// instantClock satisfies retry.Clock without actually sleeping, so tests
// exercising the quadratic backoff schedule run instantly.
type instantClock struct{ sleeps int }

func (c *instantClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	return ctx.Err()
}

func TestWaitForDeviceRescansOnEachMiss(t *testing.T) {
	rescans := 0
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) {
		if containsArg(call.args, "--rescan") {
			rescans++
		}
		return "", "", 0
	}}

	clock := &instantClock{}
	d := &ISCSIDriver{Executor: exec, Config: config.Registry{NumISCSIScanTries: 3}, Clock: clock}

	err := d.waitForDevice(context.Background(), "10.0.0.1:3260", "iqn.test:1", "/dev/disk/by-path/does-not-exist-in-tests")
	if err == nil {
		t.Fatal("waitForDevice() error = nil, want ErrDeviceNotAppearing for a path that never appears")
	}
	if rescans != 3 {
		t.Errorf("rescans = %d, want 3 (one per attempt)", rescans)
	}
	if clock.sleeps != 2 {
		t.Errorf("clock.sleeps = %d, want 2 (no sleep after the final attempt)", clock.sleeps)
	}
}

func TestListByPathEntriesFiltersToIPPrefix(t *testing.T) {
	entries, err := listByPathEntries()
	if err != nil {
		t.Skipf("skipping: /dev/disk/by-path not present in this environment: %v", err)
	}
	for _, e := range entries {
		if len(e) < 3 || e[:3] != "ip-" {
			t.Errorf("listByPathEntries() returned non-ip- entry %q", e)
		}
	}
}
