package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cuedeck/internal/console"
	"github.com/jmylchreest/cuedeck/internal/model"
)

var playCmd = &cobra.Command{
	Use:   "play <index|id|name|path>",
	Short: "Play a cue and wait for it to finish",
	Long: `Play a single cue and block until it ends.

Interrupting (Ctrl+C) stops playback and releases the audio device.

A numeric argument is an index into "cuedeck list" unless a cue has exactly
that name.

Examples:
  cuedeck play 3
  cuedeck play Doorbell`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ended := make(chan model.Cue, 1)
	c, err := openConsole(ctx, console.Callbacks{
		OnPlaybackEnded: func(cue model.Cue) {
			select {
			case ended <- cue:
			default:
			}
		},
	}, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close console", "error", err)
		}
	}()

	ref := resolveRef(c.Cues(), args[0])
	if err := c.Play(ref); err != nil {
		return err
	}

	_, active := c.Session()
	if active != nil {
		fmt.Fprintf(os.Stderr, "Playing %s\n", active.Name)
	}

	select {
	case <-ended:
		return nil
	case <-ctx.Done():
		return c.Stop("")
	}
}
