package connectors

import (
	"context"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/novahost/blockattach/pkg/config"
	"github.com/novahost/blockattach/pkg/hypervisor"
)

// LocalBlock emits a block descriptor for a device-mapper LV already
// visible on the host, preferring a stable volume-group symlink over the
// raw device_path when one exists.
type LocalBlock struct {
	Policy hypervisor.PolicyHook
	EC2IDs hypervisor.EC2IDEncoder
	Config config.Registry
}

var _ VolumeDriver = (*LocalBlock)(nil)

// Connect builds the descriptor from data.device_path, then — only when a
// numeric volume_id is present — prefers a symlink under volume_group
// named by either volume_name_template or the EC2-encoded volume id, in
// that order.
func (d *LocalBlock) Connect(_ context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) (*hypervisor.DiskDescriptor, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	devicePath, _ := req.StringField("device_path")
	driverName := d.Policy.PickDiskDriverName(true)
	descriptor := hypervisor.NewBlockDescriptor(driverName, devicePath, target, req.Serial)

	volumeID, ok := req.IntField("volume_id")
	if !ok {
		klog.V(5).Infof("connectors: %v for target %s, keeping device_path %s", ErrMissingVolumeID, target, devicePath)
		return descriptor, nil
	}

	templatedPath := fmt.Sprintf("/dev/%s/%s", d.Config.VolumeGroup, fmt.Sprintf(d.Config.VolumeNameTemplate, volumeID))
	ec2Path := fmt.Sprintf("/dev/%s/%s", d.Config.VolumeGroup, d.EC2IDs.ToEC2VolumeID(int64(volumeID)))

	switch {
	case isSymlink(templatedPath):
		descriptor.SourcePath = templatedPath
	case isSymlink(ec2Path):
		descriptor.SourcePath = ec2Path
	default:
		klog.V(4).Infof("connectors: attaching device %s as %s", descriptor.SourcePath, target)
	}

	return descriptor, nil
}

// Disconnect is a no-op.
func (d *LocalBlock) Disconnect(_ context.Context, _ *hypervisor.ConnectionRequest, _ hypervisor.TargetSlot) error {
	return nil
}

func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}
