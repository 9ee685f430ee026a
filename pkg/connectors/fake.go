package connectors

import (
	"context"

	"github.com/novahost/blockattach/pkg/hypervisor"
)

// Fake emits a fixed network descriptor used only by tests; it performs no
// I/O.
type Fake struct{}

var _ VolumeDriver = Fake{}

// Connect returns a fixed descriptor regardless of the request contents.
func (Fake) Connect(_ context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) (*hypervisor.DiskDescriptor, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	return hypervisor.NewNetworkDescriptor("qemu", "fake", "fake", target, req.Serial), nil
}

// Disconnect is a no-op.
func (Fake) Disconnect(_ context.Context, _ *hypervisor.ConnectionRequest, _ hypervisor.TargetSlot) error {
	return nil
}
