// Package hypervisor defines the data model shared by every volume driver:
// the connection request issued by the upstream scheduler, the target slot
// it should land on, and the disk descriptor handed back to the instance
// launcher.
package hypervisor

// ConnectionRequest is the opaque input a driver receives from the
// scheduler. Data is intentionally untyped: its shape is driver-specific
// (iSCSI carries target_portal/target_iqn/target_lun, NetworkURI carries
// name and optional auth fields, and so on). The driver_volume_type tag is
// DriverVolumeType, not a Data key.
type ConnectionRequest struct {
	DriverVolumeType string
	Data             map[string]any
	Serial           string
}

// Clone returns a shallow copy of the request with its own Data map, so a
// caller can rewrite fields (e.g. target_portal for a discovered address)
// without mutating the original.
func (r *ConnectionRequest) Clone() *ConnectionRequest {
	clone := &ConnectionRequest{
		DriverVolumeType: r.DriverVolumeType,
		Serial:           r.Serial,
		Data:             make(map[string]any, len(r.Data)),
	}
	for k, v := range r.Data {
		clone.Data[k] = v
	}
	return clone
}

// StringField returns Data[key] as a string, and whether it was present
// and non-empty.
func (r *ConnectionRequest) StringField(key string) (string, bool) {
	v, ok := r.Data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// IntField returns Data[key] coerced to an int, and whether coercion
// succeeded. Scheduler payloads round-trip through JSON/YAML, so numeric
// fields may arrive as int, int64 or float64.
func (r *ConnectionRequest) IntField(key string) (int, bool) {
	v, ok := r.Data[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// BoolField returns Data[key] treated as a truthy marker. NetworkURI's
// auth_enabled field only needs to be truthy, not a strict bool: bool(true),
// a non-zero number, any string other than "", "0" and "false", and any
// other non-nil value all count.
func (r *ConnectionRequest) BoolField(key string) bool {
	v, ok := r.Data[key]
	if !ok || v == nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b != "" && b != "0" && b != "false"
	case int:
		return b != 0
	case int64:
		return b != 0
	case float64:
		return b != 0
	default:
		return true
	}
}

// SetField writes a value back into Data, creating the map if necessary.
func (r *ConnectionRequest) SetField(key string, value any) {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
}

// TargetSlot is the guest-visible device name the hypervisor should assign,
// e.g. "vdb".
type TargetSlot string

// DiskDescriptor is the structured input consumed by the guest launcher to
// attach a device to a guest.
type DiskDescriptor struct {
	Auth           *DiskDescriptorAuth
	SourceKind     SourceKind
	DriverName     string
	DriverFormat   string
	DriverCache    string
	SourcePath     string
	SourceProtocol string
	SourceHost     string
	TargetDev      TargetSlot
	TargetBus      string
	Serial         string
}

// SourceKind distinguishes a block-device source from a network source.
type SourceKind string

const (
	SourceKindBlock   SourceKind = "block"
	SourceKindNetwork SourceKind = "network"
)

// DiskDescriptorAuth carries the CHAP-derived secret reference a network
// source needs to authenticate, never the secret itself.
type DiskDescriptorAuth struct {
	Username   string
	SecretType string
	SecretUUID string
}

// NewBlockDescriptor builds the fixed-field descriptor shared by every
// block-sourced driver (LocalBlock, and iSCSI via LocalBlock).
func NewBlockDescriptor(driverName, sourcePath string, target TargetSlot, serial string) *DiskDescriptor {
	return &DiskDescriptor{
		SourceKind:   SourceKindBlock,
		DriverName:   driverName,
		DriverFormat: "raw",
		DriverCache:  "none",
		SourcePath:   sourcePath,
		TargetDev:    target,
		TargetBus:    "virtio",
		Serial:       serial,
	}
}

// NewNetworkDescriptor builds the fixed-field descriptor shared by every
// network-sourced driver (Fake, NetworkURI).
func NewNetworkDescriptor(driverName, protocol, host string, target TargetSlot, serial string) *DiskDescriptor {
	return &DiskDescriptor{
		SourceKind:     SourceKindNetwork,
		DriverName:     driverName,
		DriverFormat:   "raw",
		DriverCache:    "none",
		SourceProtocol: protocol,
		SourceHost:     host,
		TargetDev:      target,
		TargetBus:      "virtio",
		Serial:         serial,
	}
}
