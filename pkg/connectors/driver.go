// Package connectors implements the volume driver family: LocalBlock,
// Fake, NetworkURI and ISCSI, dispatched by driver_volume_type through a
// Registry.
package connectors

import (
	"context"
	"errors"

	"github.com/novahost/blockattach/pkg/hypervisor"
)

// Driver type tags, the values a ConnectionRequest.DriverVolumeType takes
// for the non-pass-through variants. Any other tag is routed to
// NetworkURI, the generic qemu-native transport driver, matching the
// protocol switch's default branch falling through to a network driver.
const (
	DriverTypeLocalBlock = "local"
	DriverTypeFake       = "fake"
	DriverTypeISCSI      = "iscsi"
)

// VolumeDriver is the two-operation contract every driver variant
// implements.
type VolumeDriver interface {
	Connect(ctx context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) (*hypervisor.DiskDescriptor, error)
	Disconnect(ctx context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) error
}

// Static errors shared across driver variants.
var (
	// ErrMissingVolumeID marks LocalBlock's preference chain being skipped
	// because volume_id was absent from the request. It is never returned
	// to a caller of Connect; it exists so tests (and callers curious about
	// the fallthrough) can compare against it with errors.Is.
	ErrMissingVolumeID = errors.New("connectors: volume_id not present in connection request data")

	// ErrDeviceNotAppearing reports that the device-node poll budget was
	// exhausted without the expected /dev/disk/by-path node appearing.
	ErrDeviceNotAppearing = errors.New("connectors: iSCSI device not found")

	// ErrNilRequest guards the handful of entrypoints that dereference the
	// request unconditionally.
	ErrNilRequest = errors.New("connectors: nil connection request")
)
