package cli

import (
	"fmt"

	"github.com/mobile-next/doubletap/server"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the doubletap version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "doubletap %s (server protocol %s)\n", version, server.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
