package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cuedeck/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive cue board",
	Long: `Launch the interactive terminal cue board.

The TUI provides:
  - Cue list with play, pause, resume and stop
  - Recorder panel with a live level meter and timer
  - Import, delete and search
  - Live updates when files are added to the data directory

Key bindings:
  tab, 1/2/3   Switch panel
  j/k, ↑/↓     Navigate list
  enter/space  Play, pause or resume the selected cue
  s            Stop
  R            Start/stop recording (Recorder panel)
  w            Save the recording (Recorder panel)
  i            Import a file
  D            Delete cue and file
  /            Search cues
  ?            Show help
  q            Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	bridge := tui.NewBridge()
	defer bridge.Close()

	c, err := openConsole(context.Background(), bridge.Callbacks(), true)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close console", "error", err)
		}
	}()

	return tui.Run(tui.RunOptions{
		Config:  cfg,
		Backend: c,
		Bridge:  bridge,
	})
}
