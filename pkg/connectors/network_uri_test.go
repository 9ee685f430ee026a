package connectors

import (
	"context"
	"testing"

	"github.com/novahost/blockattach/pkg/hypervisor"
)

func TestNetworkURIConnectBuildsProtocolDescriptor(t *testing.T) {
	d := &NetworkURI{Policy: fakePolicy{}}
	r := &hypervisor.ConnectionRequest{
		DriverVolumeType: "rbd",
		Serial:           "vol-1",
		Data:             map[string]any{"name": "pool/image"},
	}

	descriptor, err := d.Connect(context.Background(), r, "vdb")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if descriptor.SourceKind != hypervisor.SourceKindNetwork {
		t.Errorf("SourceKind = %q, want network", descriptor.SourceKind)
	}
	if descriptor.SourceProtocol != "rbd" {
		t.Errorf("SourceProtocol = %q, want %q", descriptor.SourceProtocol, "rbd")
	}
	if descriptor.SourceHost != "pool/image" {
		t.Errorf("SourceHost = %q, want %q", descriptor.SourceHost, "pool/image")
	}
	if descriptor.Auth != nil {
		t.Errorf("Auth = %+v, want nil when auth_enabled is absent", descriptor.Auth)
	}
}

func TestNetworkURIConnectCopiesAuthWhenEnabled(t *testing.T) {
	d := &NetworkURI{Policy: fakePolicy{}}
	r := &hypervisor.ConnectionRequest{
		DriverVolumeType: "rbd",
		Data: map[string]any{
			"name":          "pool/image",
			"auth_enabled":  true,
			"auth_username": "alice",
			"secret_type":   "ceph",
			"secret_uuid":   "uuid-1",
		},
	}

	descriptor, err := d.Connect(context.Background(), r, "vdb")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if descriptor.Auth == nil {
		t.Fatal("Auth = nil, want non-nil when auth_enabled is truthy")
	}
	if descriptor.Auth.Username != "alice" || descriptor.Auth.SecretType != "ceph" || descriptor.Auth.SecretUUID != "uuid-1" {
		t.Errorf("Auth = %+v, unexpected field values", descriptor.Auth)
	}
}

func TestNetworkURIConnectTreatsNonEmptyStringAsTruthy(t *testing.T) {
	d := &NetworkURI{Policy: fakePolicy{}}
	r := &hypervisor.ConnectionRequest{
		Data: map[string]any{"name": "host", "auth_enabled": "1"},
	}

	descriptor, err := d.Connect(context.Background(), r, "vdb")
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if descriptor.Auth == nil {
		t.Error("Auth = nil, want non-nil for a truthy non-bool auth_enabled value")
	}
}

func TestNetworkURIConnectNilRequest(t *testing.T) {
	d := &NetworkURI{}
	if _, err := d.Connect(context.Background(), nil, "vdb"); err != ErrNilRequest {
		t.Errorf("Connect(nil) error = %v, want ErrNilRequest", err)
	}
}

func TestNetworkURIDisconnectIsNoop(t *testing.T) {
	d := &NetworkURI{}
	if err := d.Disconnect(context.Background(), req(nil), "vdb"); err != nil {
		t.Errorf("Disconnect() error = %v, want nil", err)
	}
}
