package connectors

import (
	"context"
	"testing"

	"github.com/novahost/blockattach/pkg/config"
)

func TestNewDefaultRegistryDispatchesISCSIAndFallsBackToNetworkURI(t *testing.T) {
	exec := &fakeExecutor{handle: func(call fakeCall, accept []int) (string, string, int) { return "", "", 0 }}
	r := NewDefaultRegistry(exec, fakeInventory{}, fakePolicy{}, fakeEC2Encoder{}, config.Defaults())

	withExistingDevice(t, func(string) bool { return true })

	iscsiReq := req(map[string]any{"target_portal": "10.0.0.1:3260", "target_iqn": "iqn.test:1"})
	iscsiReq.DriverVolumeType = DriverTypeISCSI
	if _, err := r.Connect(context.Background(), iscsiReq, "vdb"); err != nil {
		t.Fatalf("Connect(iscsi) error = %v", err)
	}

	netReq := req(map[string]any{"name": "pool/image"})
	netReq.DriverVolumeType = "rbd"
	descriptor, err := r.Connect(context.Background(), netReq, "vdc")
	if err != nil {
		t.Fatalf("Connect(rbd) error = %v", err)
	}
	if descriptor.SourceProtocol != "rbd" {
		t.Errorf("SourceProtocol = %q, want %q", descriptor.SourceProtocol, "rbd")
	}
}
