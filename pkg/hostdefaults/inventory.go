package hostdefaults

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// LsblkInventory enumerates every block device node currently visible to
// the kernel by shelling out to lsblk, the same way the rest of this
// component's host discovery works. It intentionally has no notion of
// which guest a device belongs to: the iSCSI driver only needs to know
// whether *some* device still exists under a candidate path, not who
// owns it.
type LsblkInventory struct{}

// AllBlockDevices lists the full /dev path of every block device lsblk
// reports, including device-mapper names and their single-path members.
func (LsblkInventory) AllBlockDevices(ctx context.Context) ([]string, error) {
	lsblkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(lsblkCtx, "lsblk", "-n", "-p", "-o", "PATH")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("lsblk failed: %w, output: %s", err, string(output))
	}

	var devices []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}
		devices = append(devices, path)
	}
	if err := scanner.Err(); err != nil {
		klog.Warningf("hostdefaults: error scanning lsblk output: %v", err)
	}

	return devices, nil
}
