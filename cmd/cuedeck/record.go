package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cuedeck/internal/console"
)

var recordOpts struct {
	name        string
	description string
	duration    time.Duration
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a new cue from the default input device",
	Long: `Record audio from the default input device and save it as a cue.

Recording runs until --duration elapses or until interrupted (Ctrl+C).
The take is saved as <data-dir>/<name>.wav, replacing any file of that name.

Examples:
  # Record until Ctrl+C
  cuedeck record --name clap

  # Record five seconds with a description
  cuedeck record --name horn --description "Act 2 car horn" --duration 5s`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVarP(&recordOpts.name, "name", "n", "",
		"Name of the new cue (required)")
	recordCmd.Flags().StringVarP(&recordOpts.description, "description", "d", "",
		"Description of the new cue")
	recordCmd.Flags().DurationVar(&recordOpts.duration, "duration", 0,
		"Stop after this long (0=until interrupted)")
	_ = recordCmd.MarkFlagRequired("name")
}

func runRecord(cmd *cobra.Command, args []string) error {
	if recordOpts.duration < 0 {
		return errors.New("duration must not be negative")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failed := make(chan string, 1)
	c, err := openConsole(context.Background(), console.Callbacks{
		OnError: func(message string) {
			select {
			case failed <- message:
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

	if err := c.StartRecording(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Recording... press Ctrl+C to stop")

	var timeout <-chan time.Time
	if recordOpts.duration > 0 {
		timer := time.NewTimer(recordOpts.duration)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
	case <-timeout:
	case message := <-failed:
		// The capture already ended; keep whatever it managed to record.
		logger.Warn("recording interrupted", "error", message)
	}

	if c.Recorder().Recording {
		if err := c.StopRecording(); err != nil {
			return err
		}
	}

	cue, err := c.SaveRecording(recordOpts.name, recordOpts.description)
	if err != nil {
		return err
	}
	notifier.NotifySaved(cue.Name)
	fmt.Println(cue.FilePath)
	return nil
}
