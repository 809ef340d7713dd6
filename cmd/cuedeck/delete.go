package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cuedeck/internal/console"
)

var deleteOpts struct {
	dryRun bool
}

var deleteCmd = &cobra.Command{
	Use:     "delete <index|id|name|path>",
	Aliases: []string{"rm"},
	Short:   "Delete a cue and its file",
	Long: `Delete a cue and remove its audio file from disk.

If the file is held open by the audio device, the device is released and the
removal retried a few times before giving up.

A numeric argument is an index into "cuedeck list" unless a cue has exactly
that name.

Examples:
  cuedeck delete 2
  cuedeck delete "Door slam" --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolVar(&deleteOpts.dryRun, "dry-run", false,
		"Show what would be removed without actually removing")
}

func runDelete(cmd *cobra.Command, args []string) error {
	c, err := openConsole(context.Background(), console.Callbacks{}, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close console", "error", err)
		}
	}()

	ref := resolveRef(c.Cues(), args[0])
	cue, ok := c.Lookup(ref)
	if !ok {
		return fmt.Errorf("no cue matches %q", args[0])
	}

	if deleteOpts.dryRun {
		fmt.Printf("Would remove %s (%s)\n", cue.Name, cue.FilePath)
		return nil
	}

	if err := c.DeleteCue(cue.FilePath); err != nil {
		return err
	}
	notifier.NotifyDeleted(cue.Name)
	fmt.Printf("Removed %s\n", cue.Name)
	return nil
}
