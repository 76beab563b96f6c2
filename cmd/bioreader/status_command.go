package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bioreader/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show reader session and host readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.openStatusReader(cmd)
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			defer r.Close()

			status, err := r.Status(cmd.Context())
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			_, remote := r.(*remoteReader)
			printStatus(cmd.OutOrStdout(), status, remote, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
}

func printStatus(out io.Writer, status api.StatusResponse, remote bool, colorize bool) {
	for _, line := range renderSectionHeader("Reader", colorize) {
		fmt.Fprintln(out, line)
	}
	if remote {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "not running", colorize))
	}
	for _, line := range sessionLines(status.Session, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Busy", statusInfo, yesNo(status.Busy), colorize))

	pf := status.Preflight
	if pf == nil {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Host", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range pf.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	if !pf.Ready && pf.ErrorMessage != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Not ready: "+pf.ErrorMessage)
	}
}
