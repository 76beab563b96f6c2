package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bioreader/internal/preflight"
)

func newSDKCommand() *cobra.Command {
	sdkCmd := &cobra.Command{
		Use:   "sdk",
		Short: "Vendor library utilities",
	}
	sdkCmd.AddCommand(newSDKSyncCommand())
	return sdkCmd
}

func newSDKSyncCommand() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:         "sync <library-or-directory>",
		Short:       "Install the vendor library next to the executable",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := preflight.SyncLibrary(args[0], dest)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Updated {
				fmt.Fprintf(out, "Installed %s\n", result.Path)
			} else {
				fmt.Fprintf(out, "%s is already up to date\n", result.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "Destination directory (default: the executable's directory)")
	return cmd
}
