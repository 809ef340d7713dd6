package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cuedeck/internal/console"
)

var importOpts struct {
	name        string
	description string
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Copy an audio file into the data directory as a cue",
	Long: `Copy an existing audio file into the data directory and add it as a cue.

The cue is named after the file unless --name is given. A file with the same
name in the data directory is replaced.

Examples:
  cuedeck import ~/Downloads/thunder.mp3
  cuedeck import take3.wav --name "Door slam" --description "Scene 4"`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importOpts.name, "name", "n", "",
		"Name of the new cue (default: file name without extension)")
	importCmd.Flags().StringVarP(&importOpts.description, "description", "d", "",
		"Description of the new cue")
}

func runImport(cmd *cobra.Command, args []string) error {
	c, err := openConsole(context.Background(), console.Callbacks{}, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close console", "error", err)
		}
	}()

	cue, err := c.ImportFile(args[0], importOpts.name, importOpts.description)
	if err != nil {
		return err
	}
	notifier.NotifySaved(cue.Name)
	fmt.Println(cue.FilePath)
	return nil
}
