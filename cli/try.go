package cli

import (
	"github.com/mobile-next/doubletap/commands"
	"github.com/mobile-next/doubletap/tui"
	"github.com/spf13/cobra"
)

var tryCmd = &cobra.Command{
	Use:   "try",
	Short: "Open an interactive tap pad",
	Long:  `Opens a terminal tap pad. Press space or enter, or click, to tap; single and double taps are shown as they are classified.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := commands.GetDefaults()
		if noDoubleTap {
			opts.DoubleTap = false
		}
		return tui.Run(opts)
	},
}

func init() {
	rootCmd.AddCommand(tryCmd)

	tryCmd.Flags().IntVar(&thresholdMs, "threshold", 0, "double tap threshold in milliseconds")
	tryCmd.Flags().BoolVar(&singleTap, "single-tap", false, "report taps that are not followed by a second one")
	tryCmd.Flags().BoolVar(&noSuppress, "no-suppress", false, "do not prevent the default action of double taps")
	tryCmd.Flags().BoolVar(&noDoubleTap, "no-double-tap", false, "run without a double tap callback (inert classifier)")
}
