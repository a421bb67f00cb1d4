package cli

import (
	"context"
	"fmt"

	"github.com/mobile-next/doubletap/daemon"
	"github.com/mobile-next/doubletap/server"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Server management commands",
	Long:  `Commands for managing the doubletap JSON-RPC server.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the doubletap server",
	Long:  `Starts the doubletap server. Clients create classifier sessions and send taps over HTTP or WebSocket.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr := cmd.Flag("listen").Value.String()
		if listenAddr == "" {
			listenAddr = settings.Server.Listen
		}

		// GetBool cannot fail for defined flags
		enableCORS, _ := cmd.Flags().GetBool("cors")
		enableCORS = enableCORS || settings.Server.CORS
		isDaemon, _ := cmd.Flags().GetBool("daemon")
		logFile, _ := cmd.Flags().GetString("log-file")

		if isDaemon && !daemon.IsChild() {
			_, err := daemon.Daemonize(daemon.Options{LogFile: logFile})
			if err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Server daemon spawned, attempting to listen on %s\n", listenAddr)
			return nil
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return server.StartServer(ctx, listenAddr, enableCORS, getShutdownHook())
	},
}

var serverKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop the daemonized doubletap server",
	Long:  `Connects to the server and sends a shutdown command via JSON-RPC.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// GetString cannot fail for defined flags
		addr, _ := cmd.Flags().GetString("listen")
		if addr == "" {
			addr = settings.Server.Listen
		}

		err := daemon.KillServer(addr)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Server shutdown command sent successfully\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// add server subcommands
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverKillCmd)

	// server start flags
	serverStartCmd.Flags().String("listen", "", "Address to listen on (e.g., 'localhost:12000' or '0.0.0.0:13000')")
	serverStartCmd.Flags().Bool("cors", false, "Enable CORS support")
	serverStartCmd.Flags().BoolP("daemon", "d", false, "Run server in daemon mode (background)")
	serverStartCmd.Flags().String("log-file", "", "File that receives the daemon's output (default: discarded)")
	serverStartCmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "Maximum number of live sessions before the least recently used is closed")
	serverStartCmd.Flags().IntVar(&thresholdMs, "threshold", 0, "Default double tap threshold in milliseconds for new sessions")
	serverStartCmd.Flags().BoolVar(&singleTap, "single-tap", false, "Report single taps in new sessions by default")
	serverStartCmd.Flags().BoolVar(&noSuppress, "no-suppress", false, "Do not prevent the default action of double taps by default")

	// server kill flags
	serverKillCmd.Flags().String("listen", "", fmt.Sprintf("Address of server to kill (default: %s)", settings.Server.Listen))
}
