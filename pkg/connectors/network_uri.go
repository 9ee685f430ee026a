package connectors

import (
	"context"

	"github.com/novahost/blockattach/pkg/hypervisor"
)

// NetworkURI emits a network-protocol descriptor for a qemu-native
// transport (rbd, gluster, nvme-tcp, …), with optional CHAP-derived
// credentials copied through when auth_enabled is truthy.
type NetworkURI struct {
	Policy hypervisor.PolicyHook
}

var _ VolumeDriver = (*NetworkURI)(nil)

// Connect builds the descriptor: protocol is the request's
// driver_volume_type tag, host is data.name.
func (d *NetworkURI) Connect(_ context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) (*hypervisor.DiskDescriptor, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	driverName := d.Policy.PickDiskDriverName(false)
	host, _ := req.StringField("name")

	descriptor := hypervisor.NewNetworkDescriptor(driverName, req.DriverVolumeType, host, target, req.Serial)

	if req.BoolField("auth_enabled") {
		username, _ := req.StringField("auth_username")
		secretType, _ := req.StringField("secret_type")
		secretUUID, _ := req.StringField("secret_uuid")
		descriptor.Auth = &hypervisor.DiskDescriptorAuth{
			Username:   username,
			SecretType: secretType,
			SecretUUID: secretUUID,
		}
	}

	return descriptor, nil
}

// Disconnect is a no-op.
func (d *NetworkURI) Disconnect(_ context.Context, _ *hypervisor.ConnectionRequest, _ hypervisor.TargetSlot) error {
	return nil
}
