package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/novahost/blockattach/pkg/connectors"
	"github.com/novahost/blockattach/pkg/initiator"
	"github.com/spf13/cobra"
)

func newSessionsCmd(privilegeEscalation *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List active iSCSI sessions reported by iscsiadm",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(cmd, privilegeEscalation)
		},
	}
}

func runSessions(cmd *cobra.Command, privilegeEscalation *string) error {
	exec := &initiator.RealExecutor{PrivilegeEscalation: splitPrefix(*privilegeEscalation)}

	sessions, err := connectors.ListISCSISessions(cmd.Context(), exec)
	if err != nil {
		return err
	}

	t := newStyledTable()
	t.AppendHeader(table.Row{"Portal", "IQN"})
	for _, s := range sessions {
		t.AppendRow(table.Row{s.Portal, s.IQN})
	}
	t.Render()
	return nil
}

func splitPrefix(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
