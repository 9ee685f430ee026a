package hypervisor

import "context"

// PolicyHook picks the hypervisor disk driver name (e.g. "qemu") for a
// given source kind. Owned by the hypervisor integration, not by this
// component.
type PolicyHook interface {
	PickDiskDriverName(isBlockDevice bool) string
}

// GuestInventory enumerates the block devices currently attached to guests
// on this host. The iSCSI driver uses it during disconnect to decide
// whether a portal or multipath device is still referenced by another LUN.
// Implementations must treat the result as a point-in-time snapshot: the
// process-wide lock (pkg/lock) prevents this component's own calls from
// racing it, but not out-of-process actors.
type GuestInventory interface {
	AllBlockDevices(ctx context.Context) ([]string, error)
}

// EC2IDEncoder renders a numeric volume id in EC2 volume-id form
// ("vol-1a2b3c4d"), used by LocalBlock's symlink preference chain.
type EC2IDEncoder interface {
	ToEC2VolumeID(id int64) string
}
