package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"

	"github.com/novahost/blockattach/pkg/config"
	"github.com/novahost/blockattach/pkg/hypervisor"
	"github.com/novahost/blockattach/pkg/initiator"
	"github.com/novahost/blockattach/pkg/lock"
	"github.com/novahost/blockattach/pkg/metrics"
	"github.com/novahost/blockattach/pkg/retry"
)

// ISCSIDriver manages initiator session state, waits for the
// /dev/disk/by-path device node to materialize, optionally folds it into a
// multipath device, and delegates final descriptor emission to Base. It is
// the largest of the VolumeDriver implementations: everything else in this
// package builds a descriptor from data the caller already supplied, but
// this one drives external tool state machines to produce that data.
type ISCSIDriver struct {
	Executor  initiator.Executor
	Inventory hypervisor.GuestInventory
	Base      *LocalBlock
	Config    config.Registry

	// Clock overrides the device-wait loop's sleep for tests; nil uses the
	// real clock.
	Clock retry.Clock
}

var _ VolumeDriver = (*ISCSIDriver)(nil)

func (d *ISCSIDriver) clock() retry.Clock {
	if d.Clock != nil {
		return d.Clock
	}
	return retry.RealClock
}

type iscsiParams struct {
	portal string
	iqn    string
	lun    int
}

func (d *ISCSIDriver) parseParams(req *hypervisor.ConnectionRequest) (iscsiParams, error) {
	portal, ok := req.StringField("target_portal")
	if !ok {
		return iscsiParams{}, status.Error(codes.InvalidArgument, "target_portal is required")
	}
	iqn, ok := req.StringField("target_iqn")
	if !ok {
		return iscsiParams{}, status.Error(codes.InvalidArgument, "target_iqn is required")
	}
	lun, ok := req.IntField("target_lun")
	if !ok {
		lun = 0
	}
	return iscsiParams{portal: portal, iqn: iqn, lun: lun}, nil
}

// Connect runs the full connect protocol: acquire the process-wide lock,
// log in to one portal (or every portal discovered via sendtargets, when
// multipath is enabled), wait for the device node, fold it into a
// multipath device when applicable, and hand the resulting device_path to
// Base for descriptor emission.
func (d *ISCSIDriver) Connect(ctx context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) (*hypervisor.DiskDescriptor, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	params, err := d.parseParams(req)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()

	metrics.IncLockWaiters()
	waitStart := time.Now()
	release, err := lock.Acquire(ctx)
	metrics.DecLockWaiters()
	if err != nil {
		return nil, status.Errorf(codes.Aborted, "acquiring connect_volume lock: %v", err)
	}
	metrics.ObserveLockWait(metrics.DriverISCSI, metrics.OpConnect, time.Since(waitStart))
	defer release()

	klog.V(4).Infof("connectors[%s]: iSCSI connect portal=%s iqn=%s lun=%d target=%s multipath=%t", correlationID, params.portal, params.iqn, params.lun, target, d.Config.UseMultipath)

	if d.Config.UseMultipath {
		if err := d.connectAllPortals(ctx, params, req, correlationID); err != nil {
			return nil, err
		}
	} else if err := d.connectToPortal(ctx, params.portal, params.iqn, req); err != nil {
		return nil, err
	}

	hostDevice := deviceNodePath(params.portal, params.iqn, params.lun)
	if err := d.waitForDevice(ctx, params.portal, params.iqn, hostDevice); err != nil {
		klog.Errorf("connectors[%s]: %v", correlationID, err)
		return nil, status.Errorf(codes.DeadlineExceeded, "%v", err)
	}

	if d.Config.UseMultipath {
		d.rescanMultipath(ctx)
		if mpath, ok := d.multipathDeviceName(ctx, hostDevice); ok {
			klog.V(4).Infof("connectors[%s]: folded %s into multipath device %s", correlationID, hostDevice, mpath)
			hostDevice = mpath
		}
	}

	req.SetField("device_path", hostDevice)
	klog.V(4).Infof("connectors[%s]: iSCSI device ready at %s", correlationID, hostDevice)

	return d.Base.Connect(ctx, req, target)
}

// connectAllPortals runs sendtargets discovery against params.portal, logs
// in to every discovered address with a shallow-copied request, then
// issues a global node+session rescan.
func (d *ISCSIDriver) connectAllPortals(ctx context.Context, params iscsiParams, req *hypervisor.ConnectionRequest, correlationID string) error {
	out, _, err := d.Executor.Run(ctx, acceptDiscovery, "iscsiadm", "-m", "discovery", "-t", "sendtargets", "-p", params.portal)
	if err != nil {
		return status.Errorf(codes.Internal, "iscsiadm discovery at %s: %v", params.portal, err)
	}

	portals := parseDiscoveryPortals(out)
	klog.V(4).Infof("connectors[%s]: discovered %d portal(s) via sendtargets at %s", correlationID, len(portals), params.portal)

	for _, discovered := range portals {
		portalReq := req.Clone()
		portalReq.SetField("target_portal", discovered)
		if err := d.connectToPortal(ctx, discovered, params.iqn, portalReq); err != nil {
			return err
		}
	}

	d.rescanISCSI(ctx)
	return nil
}

func (d *ISCSIDriver) rescanISCSI(ctx context.Context) {
	if _, _, err := d.Executor.Run(ctx, acceptRescan, "iscsiadm", "-m", "node", "--rescan"); err != nil {
		klog.Warningf("connectors: iscsiadm -m node --rescan failed: %v", err)
	}
	if _, _, err := d.Executor.Run(ctx, acceptRescan, "iscsiadm", "-m", "session", "--rescan"); err != nil {
		klog.Warningf("connectors: iscsiadm -m session --rescan failed: %v", err)
	}
}

func (d *ISCSIDriver) rescanMultipath(ctx context.Context) {
	if _, _, err := d.Executor.Run(ctx, acceptMultipathRescan, "multipath", "-r"); err != nil {
		klog.Warningf("connectors: multipath -r failed: %v", err)
	}
}

// Disconnect is best-effort and reference-counted: a portal or multipath
// device is only torn down once no other guest block device still
// references it. Base.Disconnect (a no-op today) runs first so a future
// Base implementation with teardown of its own still executes even if the
// iSCSI-specific teardown below hits an error.
func (d *ISCSIDriver) Disconnect(ctx context.Context, req *hypervisor.ConnectionRequest, target hypervisor.TargetSlot) error {
	if req == nil {
		return ErrNilRequest
	}

	params, err := d.parseParams(req)
	if err != nil {
		return err
	}

	metrics.IncLockWaiters()
	waitStart := time.Now()
	release, err := lock.Acquire(ctx)
	metrics.DecLockWaiters()
	if err != nil {
		return status.Errorf(codes.Aborted, "acquiring connect_volume lock: %v", err)
	}
	metrics.ObserveLockWait(metrics.DriverISCSI, metrics.OpDisconnect, time.Since(waitStart))
	defer release()

	hostDevice := deviceNodePath(params.portal, params.iqn, params.lun)

	var multipathDevice string
	var hasMultipath bool
	if d.Config.UseMultipath {
		multipathDevice, hasMultipath = d.multipathDeviceName(ctx, hostDevice)
	}

	if err := d.Base.Disconnect(ctx, req, target); err != nil {
		klog.Warningf("connectors: base disconnect for target %s returned error, continuing teardown: %v", target, err)
	}

	if d.Config.UseMultipath && hasMultipath {
		d.disconnectMultipath(ctx, params, multipathDevice)
		return nil
	}

	d.disconnectSinglePath(ctx, params)
	return nil
}

// disconnectMultipath implements the multipath-aware teardown: rescan,
// enumerate guest-attached devices folded into dm names, and decide
// between removing just this dm device descriptor (other LUNs still share
// the underlying portals) or tearing every portal down (none do).
func (d *ISCSIDriver) disconnectMultipath(ctx context.Context, params iscsiParams, multipathDevice string) {
	d.rescanISCSI(ctx)
	d.rescanMultipath(ctx)

	attached, err := d.Inventory.AllBlockDevices(ctx)
	if err != nil {
		klog.Warningf("connectors: listing attached guest block devices failed: %v", err)
		attached = nil
	}

	var devices []string
	for _, dev := range attached {
		if strings.Contains(dev, "/mapper/") {
			devices = append(devices, dev)
			continue
		}
		if mpath, ok := d.multipathDeviceName(ctx, dev); ok {
			devices = append(devices, mpath)
		}
	}

	if len(devices) == 0 {
		d.disconnectAllPortalsForIQN(ctx, params.iqn)
		return
	}

	otherIQNs := make(map[string]bool, len(devices))
	for _, dev := range devices {
		otherIQNs[d.reverseIQNLookup(ctx, dev)] = true
	}

	if !otherIQNs[params.iqn] {
		d.disconnectAllPortalsForIQN(ctx, params.iqn)
		return
	}

	d.removeMultipathDescriptor(ctx, multipathDevice)
}

// disconnectSinglePath tears the portal down unless another guest-attached
// device still lives under this (portal, iqn) pair's by-path prefix.
func (d *ISCSIDriver) disconnectSinglePath(ctx context.Context, params iscsiParams) {
	prefix := fmt.Sprintf("%s/ip-%s-iscsi-%s-lun-", byPathDir, params.portal, params.iqn)

	attached, err := d.Inventory.AllBlockDevices(ctx)
	if err != nil {
		klog.Warningf("connectors: listing attached guest block devices failed: %v", err)
		attached = nil
	}

	for _, dev := range attached {
		if strings.HasPrefix(dev, prefix) {
			klog.V(4).Infof("connectors: %s/%s still referenced by %s, leaving portal in place", params.portal, params.iqn, dev)
			return
		}
	}

	d.disconnectPortal(ctx, params.portal, params.iqn)
}

func (d *ISCSIDriver) removeMultipathDescriptor(ctx context.Context, multipathDevice string) {
	name := strings.TrimPrefix(multipathDevice, "/dev/mapper/")
	if _, _, err := d.Executor.Run(ctx, acceptMultipathRemove, "multipath", "-f", name); err != nil {
		klog.Warningf("connectors: failed to remove multipath device descriptor %s: %v", name, err)
	}
}
