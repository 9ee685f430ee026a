// Package hostdefaults provides the concrete PolicyHook, GuestInventory,
// and EC2IDEncoder implementations a running agent wires into the
// connectors registry. LsblkInventory shells out to lsblk; the others do
// no I/O. They are kept in a separate package so tests can substitute
// fakes without touching real host state.
package hostdefaults

// QEMUDiskPolicy picks libvirt's "qemu" disk driver unconditionally. Nova's
// libvirt driver does the same for every volume backend it supports; the
// block-vs-network distinction affects cache mode and AIO settings
// upstream of this decision, not the driver name itself.
type QEMUDiskPolicy struct{}

// PickDiskDriverName always returns "qemu".
func (QEMUDiskPolicy) PickDiskDriverName(isBlockDevice bool) string {
	return "qemu"
}
