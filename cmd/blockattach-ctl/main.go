// Package main implements blockattach-ctl, an operator diagnostic CLI for
// the iSCSI volume-attachment driver: listing active sessions, probing a
// portal/IQN pair by hand, and reporting whether the host tools the
// driver depends on are present. It is not the driver's contract surface
// — the compute scheduler calls connectors.Registry.Connect/Disconnect
// directly as a library; this binary exists purely for an operator to
// poke at host state the same way kubectl-tns-csi pokes at TrueNAS state.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var privilegeEscalation string

	rootCmd := &cobra.Command{
		Use:     "blockattach-ctl",
		Short:   "Inspect and exercise the host iSCSI volume-attachment stack",
		Version: version + " (" + commit + ")",
	}

	rootCmd.PersistentFlags().StringVar(&privilegeEscalation, "privilege-escalation", "",
		"command prefix used to run iscsiadm/multipath (e.g. \"sudo\"); empty runs them directly")

	rootCmd.AddCommand(newSessionsCmd(&privilegeEscalation))
	rootCmd.AddCommand(newStatusCmd(&privilegeEscalation))
	rootCmd.AddCommand(newProbeCmd(&privilegeEscalation))

	return rootCmd
}
