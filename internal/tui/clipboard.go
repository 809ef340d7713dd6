package tui

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

const clipboardTimeout = 5 * time.Second

// clipboardTools are tried in order when no command is configured.
var clipboardTools = [][]string{
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
}

var (
	lookPath = exec.LookPath

	errNoClipboard = errors.New("no clipboard tool found (install wl-copy, xclip or xsel, or set tui.clipboard_command)")
)

// copyText pipes text into the clipboard command.
func copyText(text, configured string) error {
	argv, err := clipboardArgv(configured)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), clipboardTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// clipboardArgv splits the configured command, or picks the first tool on PATH.
func clipboardArgv(configured string) ([]string, error) {
	if argv := strings.Fields(configured); len(argv) > 0 {
		return argv, nil
	}
	for _, tool := range clipboardTools {
		if _, err := lookPath(tool[0]); err == nil {
			return tool, nil
		}
	}
	return nil, errNoClipboard
}
