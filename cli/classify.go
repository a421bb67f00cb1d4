package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mobile-next/doubletap/commands"
	"github.com/mobile-next/doubletap/tap"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify a recorded tap timeline",
	Long: `Replays a tap timeline through a classifier on a virtual clock and prints every single and double tap with the time it resolved at.

The timeline is read from --taps as comma separated milliseconds (e.g. "0,100,500"), or from a file (or stdin when no file is given, or the file is "-") holding one JSON object per line:

  {"at": 0, "x": 10, "y": 20}
  {"at": 120, "x": 12, "y": 21}`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeline, err := loadTimeline(cmd, args)
		if err != nil {
			response := commands.NewErrorResponse(err)
			if printErr := printJson(response); printErr != nil {
				return printErr
			}
			return fmt.Errorf("%s", response.Error)
		}

		req := commands.ClassifyRequest{Taps: timeline}
		if noDoubleTap {
			req.DoubleTap = tap.Bool(false)
		}

		response := commands.ClassifyCommand(req)
		if err := printJson(response); err != nil {
			return err
		}
		if response.Status == "error" {
			return fmt.Errorf("%s", response.Error)
		}
		return nil
	},
}

func loadTimeline(cmd *cobra.Command, args []string) ([]commands.TimedTap, error) {
	if tapsFlag != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--taps and a timeline file are mutually exclusive")
		}
		return parseTapList(tapsFlag)
	}

	if len(args) == 0 || args[0] == "-" {
		return readTimeline(cmd.InOrStdin())
	}

	file, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline: %w", err)
	}
	defer func() { _ = file.Close() }()

	return readTimeline(file)
}

// parseTapList parses "0,100,500" into taps at those milliseconds.
func parseTapList(list string) ([]commands.TimedTap, error) {
	parts := strings.Split(list, ",")
	timeline := make([]commands.TimedTap, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		at, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tap time '%s', expected milliseconds", part)
		}
		timeline = append(timeline, commands.TimedTap{At: at})
	}
	if len(timeline) == 0 {
		return nil, fmt.Errorf("no taps given")
	}
	return timeline, nil
}

// readTimeline reads one JSON tap per line. Blank lines and lines starting
// with '#' are skipped.
func readTimeline(r io.Reader) ([]commands.TimedTap, error) {
	var timeline []commands.TimedTap
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var t commands.TimedTap
		if err := json.Unmarshal([]byte(text), &t); err != nil {
			return nil, fmt.Errorf("line %d: invalid tap: %w", line, err)
		}
		timeline = append(timeline, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}
	if len(timeline) == 0 {
		return nil, fmt.Errorf("no taps given")
	}
	return timeline, nil
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVar(&tapsFlag, "taps", "", "comma separated tap times in milliseconds")
	classifyCmd.Flags().IntVar(&thresholdMs, "threshold", 0, "double tap threshold in milliseconds")
	classifyCmd.Flags().BoolVar(&singleTap, "single-tap", false, "report taps that are not followed by a second one")
	classifyCmd.Flags().BoolVar(&noSuppress, "no-suppress", false, "do not prevent the default action of double taps")
	classifyCmd.Flags().BoolVar(&noDoubleTap, "no-double-tap", false, "run without a double tap callback (inert classifier)")
}
