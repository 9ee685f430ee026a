package connectors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"

	"github.com/novahost/blockattach/pkg/metrics"
	"github.com/novahost/blockattach/pkg/retry"
)

const byPathDir = "/dev/disk/by-path"

// deviceNodePath is the udev-materialized device node for a given
// (portal, iqn, lun) triple.
func deviceNodePath(portal, iqn string, lun int) string {
	return fmt.Sprintf("%s/ip-%s-iscsi-%s-lun-%d", byPathDir, portal, iqn, lun)
}

// fileExists is a var so tests can substitute a fake filesystem for the
// device-node wait loop without a real /dev/disk/by-path to poll.
var fileExists = func(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// waitForDevice polls for hostDevice's existence, issuing a node-scoped
// --rescan against (portal, iqn) on each miss. Attempts are numbered
// 1..NumISCSIScanTries; QuadraticBackoff sleeps attempt² seconds between
// misses, not after the final one.
func (d *ISCSIDriver) waitForDevice(ctx context.Context, portal, iqn, hostDevice string) error {
	tries := d.Config.NumISCSIScanTries
	if tries < 1 {
		tries = 1
	}

	err := retry.QuadraticBackoff(ctx, d.clock(), tries, "device node at "+hostDevice, func(attempt int) (bool, error) {
		if fileExists(hostDevice) {
			return true, nil
		}

		klog.Warningf("connectors: %s not yet present, rescanning %s/%s (attempt %d/%d)", hostDevice, portal, iqn, attempt, tries)
		if _, _, err := d.Executor.Run(ctx, nil, "iscsiadm", "-m", "node", "-T", iqn, "-p", portal, "--rescan"); err != nil {
			klog.Warningf("connectors: rescan %s/%s failed: %v", portal, iqn, err)
		}
		metrics.RecordDeviceScanRetry(metrics.DriverISCSI)

		return fileExists(hostDevice), nil
	})

	if err != nil {
		metrics.RecordDeviceScanExhausted()
		return fmt.Errorf("%w: %s after %d attempt(s)", ErrDeviceNotAppearing, hostDevice, tries)
	}
	return nil
}

// multipathDeviceName resolves singlePathDevice to its backing dm device,
// if any, via `multipath -ll`. Lines containing "scsi_id" (wwid probe
// noise on some multipath-tools versions) are discarded before picking the
// first remaining line's first field as the dm name.
func (d *ISCSIDriver) multipathDeviceName(ctx context.Context, singlePathDevice string) (string, bool) {
	real := singlePathDevice
	if resolved, err := evalSymlinks(singlePathDevice); err == nil {
		real = resolved
	}

	out, _, err := d.Executor.Run(ctx, acceptMultipathResolve, "multipath", "-ll", real)
	if err != nil {
		klog.Warningf("connectors: multipath -ll %s failed: %v", real, err)
		return "", false
	}

	var candidate string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "scsi_id") {
			continue
		}
		candidate = line
		break
	}

	fields := strings.Fields(candidate)
	if len(fields) == 0 {
		return "", false
	}
	return "/dev/mapper/" + fields[0], true
}

// evalSymlinks resolves a by-path symlink to its backing device. It is a
// var so tests can substitute a fake by-path directory without real
// symlinks on disk.
var evalSymlinks = filepath.EvalSymlinks

// listByPathEntries lists /dev/disk/by-path non-recursively and returns
// the entries that name an iSCSI path ("ip-" prefix). A single flat
// listing is intentional: by-path never nests directories, so walking it
// recursively would only add syscalls for no benefit. It is a var so tests
// can substitute a fake by-path directory.
var listByPathEntries = func() ([]string, error) {
	entries, err := os.ReadDir(byPathDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "ip-") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

const unknownIQN = "unknown"

// extractIQN pulls the iqn substring out of a by-path entry name between
// the "iscsi-" and "-lun" markers.
func extractIQN(entry string) string {
	const marker = "iscsi-"
	i := strings.Index(entry, marker)
	if i < 0 {
		return unknownIQN
	}
	rest := entry[i+len(marker):]
	j := strings.Index(rest, "-lun")
	if j < 0 {
		return unknownIQN
	}
	return rest[:j]
}

// reverseIQNLookup finds the iqn of whichever by-path entry resolves to
// multipathDevice, used during disconnect to decide whether this request's
// iqn is still one of the LUNs folded into that dm device.
func (d *ISCSIDriver) reverseIQNLookup(ctx context.Context, multipathDevice string) string {
	entries, err := listByPathEntries()
	if err != nil {
		klog.Warningf("connectors: listing %s failed: %v", byPathDir, err)
		return unknownIQN
	}

	for _, entry := range entries {
		full := filepath.Join(byPathDir, entry)
		real, err := evalSymlinks(full)
		if err != nil {
			continue
		}
		if name, ok := d.multipathDeviceName(ctx, real); ok && name == multipathDevice {
			return extractIQN(entry)
		}
	}
	return unknownIQN
}
