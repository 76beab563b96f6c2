package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bioreader/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test alert to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Alerts.NtfyTopic) == "" {
				return fmt.Errorf("alerts.ntfy_topic is not set (or export BIOREADER_NTFY_TOPIC)")
			}
			if err := notifications.NewAlerter(cfg).TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
