package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bioreader/internal/api"
	"bioreader/internal/workflow"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var (
		req        workflow.Request
		minPercent int
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Verify a user's fingerprint, enrolling it when none is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.UserID = strings.TrimSpace(req.UserID)
			if cmd.Flags().Changed("min-percent") {
				req.MinPercent = &minPercent
			}
			r, err := ctx.openReader(cmd, true)
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			defer r.Close()

			outcome, err := r.Validate(cmd.Context(), req)
			if err != nil {
				return ctx.reportError(cmd, err)
			}
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, outcome); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), describeOutcome(req.UserID, outcome))
			}
			if !outcome.Success {
				return &exitError{code: 2}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.UserID, "user", "u", "", "User identifier")
	cmd.Flags().IntVar(&minPercent, "min-percent", 0, "Minimum match percent (default from config)")
	cmd.Flags().StringVar(&req.Finger, "finger", "", "Finger label for a new enrollment")
	cmd.Flags().StringVar(&req.Port, "port", "", "Serial port override")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func describeOutcome(userID string, o workflow.Outcome) string {
	switch {
	case o.Success && o.Enrolled:
		return fmt.Sprintf("Enrolled %s (quality %s)", userID, intOrDash(o.Quality))
	case o.Success:
		return fmt.Sprintf("Verified %s: %s%% match (score %s)", userID, intOrDash(o.Percent), intOrDash(o.Score))
	default:
		return fmt.Sprintf("Not verified: %s", o.Reason)
	}
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// reportError prints err as an API error body under --json and returns a
// silent exit. Otherwise main prints err and its remediation.
func (c *commandContext) reportError(cmd *cobra.Command, err error) error {
	if !c.jsonOutput() {
		return err
	}
	_, body := api.Describe(err)
	if writeErr := writeJSON(cmd, body); writeErr != nil {
		return err
	}
	return &exitError{code: 1}
}
