package connectors

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/novahost/blockattach/pkg/hypervisor"
	"github.com/novahost/blockattach/pkg/metrics"
)

// Registry dispatches a ConnectionRequest to the VolumeDriver registered
// for its DriverVolumeType, timing every call the way the driver's gRPC
// interceptor times every CSI RPC. A tag with no explicit registration
// falls through to the registry's default driver (ordinarily NetworkURI,
// the generic qemu-native transport).
type Registry struct {
	drivers map[string]VolumeDriver
	metric  map[string]string // driver_volume_type -> metrics driver label
	def     VolumeDriver
	defName string
}

// NewRegistry creates an empty Registry. Use Register to populate it and
// SetDefault to set the fallback driver for unregistered tags.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]VolumeDriver),
		metric:  make(map[string]string),
	}
}

// Register associates driverVolumeType with drv, recording metricLabel as
// the "driver" label used for that tag's metrics.
func (r *Registry) Register(driverVolumeType string, drv VolumeDriver, metricLabel string) {
	r.drivers[driverVolumeType] = drv
	r.metric[driverVolumeType] = metricLabel
}

// SetDefault sets the driver used for any DriverVolumeType not explicitly
// registered.
func (r *Registry) SetDefault(drv VolumeDriver, metricLabel string) {
	r.def = drv
	r.defName = metricLabel
}

func (r *Registry) resolve(driverVolumeType string) (VolumeDriver, string) {
	if drv, ok := r.drivers[driverVolumeType]; ok {
		return drv, r.metric[driverVolumeType]
	}
	return r.def, r.defName
}

// Connect resolves req.DriverVolumeType to a driver and calls Connect on
// it, timing the call.
func (r *Registry) Connect(ctx context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) (*hypervisor.DiskDescriptor, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	drv, label := r.resolve(req.DriverVolumeType)
	klog.V(4).Infof("connectors: Connect dispatched to driver_volume_type=%s target=%s", req.DriverVolumeType, target)

	timer := metrics.NewOperationTimer(label, metrics.OpConnect)
	descriptor, err := drv.Connect(ctx, req, target)
	if err != nil {
		timer.ObserveError()
		return nil, err
	}
	timer.ObserveSuccess()
	return descriptor, nil
}

// Disconnect resolves req.DriverVolumeType to a driver and calls
// Disconnect on it, timing the call.
func (r *Registry) Disconnect(ctx context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) error {
	if req == nil {
		return ErrNilRequest
	}

	drv, label := r.resolve(req.DriverVolumeType)
	klog.V(4).Infof("connectors: Disconnect dispatched to driver_volume_type=%s target=%s", req.DriverVolumeType, target)

	timer := metrics.NewOperationTimer(label, metrics.OpDisconnect)
	err := drv.Disconnect(ctx, req, target)
	if err != nil {
		timer.ObserveError()
		return err
	}
	timer.ObserveSuccess()
	return nil
}
