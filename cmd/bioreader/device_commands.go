package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bioreader/internal/device"
)

func newTestConnectionCommand(ctx *commandContext) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Initialize the reader and take a single capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.openReader(cmd, true)
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			defer r.Close()

			report, err := r.TestConnection(cmd.Context(), strings.TrimSpace(port))
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				colorize := shouldColorize(cmd.OutOrStdout())
				kind := statusOK
				if !report.Success {
					kind = statusError
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderStatusLine("Connection", kind, report.Message, colorize))
				if report.Port != "" {
					fmt.Fprintln(out, renderStatusLine("Port", statusInfo, report.Port, colorize))
				}
				if report.Success {
					fmt.Fprintln(out, renderStatusLine("Quality", statusInfo, fmt.Sprintf("%d", report.Quality), colorize))
				}
			}
			if !report.Success {
				return &exitError{code: 2}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Serial port override")
	return cmd
}

func newInitCommand(ctx *commandContext) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Open a reader session",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.openReader(cmd, false)
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			defer r.Close()

			status, err := r.Initialize(cmd.Context(), strings.TrimSpace(port))
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			return ctx.printSession(cmd, status)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Serial port override")
	return cmd
}

func newReinitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reinit",
		Short: "Close and reopen the reader session",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := ctx.openReader(cmd, false)
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			defer r.Close()

			status, err := r.Reinitialize(cmd.Context())
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			return ctx.printSession(cmd, status)
		},
	}
}

func (c *commandContext) printSession(cmd *cobra.Command, status device.Status) error {
	if c.jsonOutput() {
		return writeJSON(cmd, status)
	}
	colorize := shouldColorize(cmd.OutOrStdout())
	for _, line := range sessionLines(status, colorize) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

func sessionLines(status device.Status, colorize bool) []string {
	kind := statusWarn
	switch status.State {
	case device.StateReady.String():
		kind = statusOK
	case device.StateFaulted.String():
		kind = statusError
	}
	lines := []string{renderStatusLine("Session", kind, status.State, colorize)}
	if status.Port != "" {
		lines = append(lines, renderStatusLine("Port", statusInfo, status.Port, colorize))
	}
	if status.Binding != "" {
		lines = append(lines, renderStatusLine("Binding", statusInfo, status.Binding, colorize))
	}
	if !status.ReadySince.IsZero() {
		lines = append(lines, renderStatusLine("Ready since", statusInfo, status.ReadySince.Local().Format("2006-01-02 15:04:05"), colorize))
	}
	if status.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, fmt.Sprintf("%s (code %d)", status.LastError, status.LastCode), colorize))
	}
	return lines
}
