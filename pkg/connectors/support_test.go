package connectors

import "context"

// fakePolicy is a fixed-answer hypervisor.PolicyHook for tests.
type fakePolicy struct {
	block   string
	network string
}

func (p fakePolicy) PickDiskDriverName(isBlockDevice bool) string {
	if isBlockDevice {
		if p.block != "" {
			return p.block
		}
		return "qemu"
	}
	if p.network != "" {
		return p.network
	}
	return "qemu"
}

// fakeEC2Encoder renders a fixed, deterministic EC2-style volume id.
type fakeEC2Encoder struct{}

func (fakeEC2Encoder) ToEC2VolumeID(id int64) string {
	return "vol-deadbeef"
}

// fakeInventory returns a fixed list of guest-attached block devices.
type fakeInventory struct {
	devices []string
	err     error
}

func (f fakeInventory) AllBlockDevices(ctx context.Context) ([]string, error) {
	return f.devices, f.err
}
