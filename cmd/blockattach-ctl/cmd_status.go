package main

import (
	"os/exec"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStatusCmd(privilegeEscalation *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the host tools this driver depends on are present",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	t := newStyledTable()
	t.AppendHeader(table.Row{"Tool", "Status"})
	for _, tool := range []string{"iscsiadm", "multipath"} {
		_, err := exec.LookPath(tool)
		t.AppendRow(table.Row{tool, okBadge(err == nil)})
	}
	t.Render()
	return nil
}
