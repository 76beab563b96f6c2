package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bioreader/internal/workflow"
)

func newPortsCommand(ctx *commandContext) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and identify the reader",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.openReader(cmd, false)
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			defer r.Close()

			report, err := r.Ports(cmd.Context(), probe)
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			if len(report.Ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Port", "Label", "VID:PID", "Reader"},
				portRows(report),
				nil,
			))
			if probe && report.Probed == "" && report.Matched == "" {
				fmt.Fprintln(out, "No port answered the probe")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Initialize unmatched ports to find the reader (closes any open session)")
	return cmd
}

func portRows(report workflow.PortsReport) [][]string {
	rows := make([][]string, 0, len(report.Ports))
	for _, p := range report.Ports {
		ids := ""
		if p.VID != "" || p.PID != "" {
			ids = p.VID + ":" + p.PID
		}
		mark := ""
		switch p.PortName {
		case report.Probed:
			mark = "probed"
		case report.Matched:
			mark = "label"
		}
		rows = append(rows, []string{p.PortName, p.FriendlyName, ids, mark})
	}
	return rows
}
