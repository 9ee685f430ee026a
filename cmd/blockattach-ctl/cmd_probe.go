package main

import (
	"fmt"

	"github.com/novahost/blockattach/pkg/config"
	"github.com/novahost/blockattach/pkg/connectors"
	"github.com/novahost/blockattach/pkg/hostdefaults"
	"github.com/novahost/blockattach/pkg/hypervisor"
	"github.com/novahost/blockattach/pkg/initiator"
	"github.com/novahost/blockattach/pkg/retry"
	"github.com/spf13/cobra"
)

func newProbeCmd(privilegeEscalation *string) *cobra.Command {
	var (
		portal       string
		iqn          string
		lun          int
		target       string
		disconnect   bool
		useMultipath bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Manually connect to (or disconnect from) a portal/IQN pair and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, privilegeEscalation, portal, iqn, lun, target, disconnect, useMultipath)
		},
	}

	cmd.Flags().StringVar(&portal, "portal", "", "target_portal, e.g. 10.0.0.1:3260 (required)")
	cmd.Flags().StringVar(&iqn, "iqn", "", "target_iqn (required)")
	cmd.Flags().IntVar(&lun, "lun", 0, "target_lun")
	cmd.Flags().StringVar(&target, "target", "vdb", "guest target slot, for logging only")
	cmd.Flags().BoolVar(&disconnect, "disconnect", false, "disconnect instead of connect")
	cmd.Flags().BoolVar(&useMultipath, "multipath", false, "fold the session into a multipath device")
	_ = cmd.MarkFlagRequired("portal")
	_ = cmd.MarkFlagRequired("iqn")

	return cmd
}

func runProbe(cmd *cobra.Command, privilegeEscalation *string, portal, iqn string, lun int, target string, disconnect, useMultipath bool) error {
	exec := &initiator.RealExecutor{PrivilegeEscalation: splitPrefix(*privilegeEscalation)}
	cfg := config.Defaults()
	cfg.UseMultipath = useMultipath

	base := &connectors.LocalBlock{Policy: hostdefaults.QEMUDiskPolicy{}, EC2IDs: hostdefaults.HexEC2Encoder{}, Config: cfg}
	driver := &connectors.ISCSIDriver{
		Executor:  exec,
		Inventory: hostdefaults.LsblkInventory{},
		Base:      base,
		Config:    cfg,
		Clock:     retry.RealClock,
	}

	req := &hypervisor.ConnectionRequest{
		DriverVolumeType: connectors.DriverTypeISCSI,
		Data: map[string]any{
			"target_portal": portal,
			"target_iqn":    iqn,
			"target_lun":    lun,
		},
	}

	if disconnect {
		if err := driver.Disconnect(cmd.Context(), req, hypervisor.TargetSlot(target)); err != nil {
			return err
		}
		fmt.Println(colorSuccess.Sprint("disconnected"))
		return nil
	}

	descriptor, err := driver.Connect(cmd.Context(), req, hypervisor.TargetSlot(target))
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", colorSuccess.Sprint("connected"), descriptor.SourcePath)
	return nil
}
