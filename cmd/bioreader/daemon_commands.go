package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bioreader/internal/daemonctl"
)

const (
	daemonStartTimeout = 15 * time.Second
	daemonStopGrace    = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	start := &cobra.Command{
		Use:   "start",
		Short: "Start the reader daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			opts := daemonctl.LaunchOptions{}
			if ctx.configFlag != nil {
				opts.ConfigPath = strings.TrimSpace(*ctx.configFlag)
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), ctx.newClient(cfg), exe, opts, daemonStartTimeout)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(out, "Daemon already running at %s\n", cfg.API.Bind)
			default:
				fmt.Fprintf(out, "Daemon started (pid %d) at %s\n", result.PID, cfg.API.Bind)
			}
			return nil
		},
	}

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the reader daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := ctx.newClient(cfg)
			fallbackPID := 0
			if status, err := client.Status(cmd.Context()); err == nil {
				fallbackPID = status.PID
			}
			result, err := daemonctl.Stop(cmd.Context(), client, cfg.PIDPath(), fallbackPID, daemonStopGrace)
			out := cmd.OutOrStdout()
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon (pid %d) killed\n", result.PID)
			} else {
				fmt.Fprintf(out, "Daemon (pid %d) stopped\n", result.PID)
			}
			return nil
		},
	}

	return []*cobra.Command{start, stop}
}
