package connectors

import (
	"github.com/novahost/blockattach/pkg/config"
	"github.com/novahost/blockattach/pkg/hypervisor"
	"github.com/novahost/blockattach/pkg/initiator"
	"github.com/novahost/blockattach/pkg/metrics"
	"github.com/novahost/blockattach/pkg/retry"
)

// NewDefaultRegistry builds the Registry a running agent uses: LocalBlock
// and ISCSI registered by their driver_volume_type tags, Fake available
// under its own tag for integration tests, and NetworkURI as the
// fallback for every other protocol (rbd, nfs, and anything the
// hypervisor's own volume drivers already know how to attach).
func NewDefaultRegistry(exec initiator.Executor, inventory hypervisor.GuestInventory, policy hypervisor.PolicyHook, ec2 hypervisor.EC2IDEncoder, cfg config.Registry) *Registry {
	r := NewRegistry()

	base := &LocalBlock{Policy: policy, EC2IDs: ec2, Config: cfg}

	r.Register(DriverTypeLocalBlock, base, metrics.DriverLocalBlock)
	r.Register(DriverTypeFake, Fake{}, metrics.DriverFake)
	r.Register(DriverTypeISCSI, &ISCSIDriver{
		Executor:  exec,
		Inventory: inventory,
		Base:      base,
		Config:    cfg,
		Clock:     retry.RealClock,
	}, metrics.DriverISCSI)

	r.SetDefault(&NetworkURI{Policy: policy}, metrics.DriverNetworkURI)

	return r
}
