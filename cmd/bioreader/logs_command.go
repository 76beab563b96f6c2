package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"bioreader/internal/logs"
	"bioreader/internal/notifications"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var opts logs.Options

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon events or the log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts.LogDir = cfg.Paths.LogDir
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			printed, err := logs.Stream(cmd.Context(), ctx.newClient(cfg), opts,
				func(evt notifications.Event) {
					if ctx.jsonOutput() {
						_ = writeJSON(cmd, evt)
						return
					}
					fmt.Fprintln(out, formatEvent(evt, colorize))
				},
				func(line string) { fmt.Fprintln(out, line) },
			)
			if err != nil {
				return err
			}
			if !printed && !opts.Follow {
				fmt.Fprintln(out, "No log entries")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", 50, "Number of recent entries to show")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep streaming new entries")
	cmd.Flags().StringVar(&opts.Filters.Component, "component", "", "Only entries from this component")
	cmd.Flags().StringVar(&opts.Filters.RequestID, "request", "", "Only entries for this request id")
	cmd.Flags().StringVar(&opts.Filters.UserID, "user", "", "Only entries for this user")
	cmd.Flags().StringVar(&opts.Filters.Level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.Filters.Instructions, "instructions", false, "Only operator prompts")
	return cmd
}

func formatEvent(evt notifications.Event, colorize bool) string {
	level := evt.Level
	if evt.Kind == notifications.KindInstruction {
		level = "PROMPT"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-6s", evt.Timestamp.Local().Format("15:04:05"), level)
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteString(" " + evt.Message)
	if evt.UserID != "" {
		b.WriteString(" user=" + evt.UserID)
	}
	if evt.CorrelationID != "" {
		b.WriteString(" request=" + evt.CorrelationID)
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, evt.Fields[k])
	}

	line := b.String()
	if !colorize {
		return line
	}
	switch strings.ToUpper(level) {
	case "ERROR":
		return ansiRed + line + ansiReset
	case "WARN":
		return ansiYellow + line + ansiReset
	case "PROMPT":
		return ansiBold + line + ansiReset
	}
	return line
}
