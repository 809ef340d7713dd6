// Package main provides the CLI entrypoint for cuedeck.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cuedeck/internal/catalog"
	"github.com/jmylchreest/cuedeck/internal/config"
	"github.com/jmylchreest/cuedeck/internal/console"
	"github.com/jmylchreest/cuedeck/internal/device"
	"github.com/jmylchreest/cuedeck/internal/model"
	"github.com/jmylchreest/cuedeck/internal/notify"
	"github.com/jmylchreest/cuedeck/internal/output"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		dataDir    string
		configPath string
	}
	logger   *slog.Logger
	notifier *notify.Notifier
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cuedeck",
	Short: "Sound cue board for live shows",
	Long: `cuedeck is a sound cue board for live shows.

It keeps a library of short audio cues in a data directory, plays them one at
a time, records new ones from the microphone and imports existing files.

Running cuedeck without a subcommand launches the interactive TUI.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalOpts.dataDir != "" {
			cfg.Library.DataDir = globalOpts.dataDir
		}

		notifier = newNotifier()
		return nil
	},
	// Default to TUI when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.dataDir, "data-dir", "",
		"Directory cues are stored in (default: ~/.local/share/cuedeck/cues)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/cuedeck/config.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// newNotifier returns a desktop notifier, disabled unless configured.
func newNotifier() *notify.Notifier {
	if !cfg.Notify.Desktop {
		return notify.NewNotifier(nil, logger)
	}
	n := notify.NewNotifier(notify.NewDesktop(), logger)
	n.SetMinInterval(cfg.Notify.MinInterval.Duration())
	return n
}

// openConsole builds a console on the real audio devices. Errors are also
// sent to the desktop notifier.
func openConsole(ctx context.Context, cb console.Callbacks, watch bool) (*console.Console, error) {
	conf := *cfg
	conf.Library.Watch = watch && cfg.Library.Watch

	onError := cb.OnError
	cb.OnError = func(message string) {
		notifier.NotifyError(message)
		if onError != nil {
			onError(message)
		}
	}

	speaker := device.NewSpeaker(device.SpeakerOptions{
		SampleRate:  conf.Playback.SampleRate,
		Buffer:      conf.Playback.Buffer.Duration(),
		Volume:      float64(conf.Playback.Volume) / 100,
		ReleaseWait: conf.Playback.ReleaseWait.Duration(),
	}, logger)

	return console.New(ctx, console.Options{
		Config:    &conf,
		Output:    speaker,
		Input:     device.NewPortAudioInput(logger),
		Callbacks: cb,
		Logger:    logger,
	})
}

// loadCatalog scans the data directory without opening any audio device.
func loadCatalog() (*catalog.Catalog, error) {
	c := catalog.New(cfg.Library.Extensions, logger)
	if _, err := c.Load(cfg.ResolveDataDir()); err != nil {
		return nil, fmt.Errorf("failed to load cues: %w", err)
	}
	return c, nil
}

// resolveRef turns a CLI argument into a console ref. Dmenu lines are
// reduced to their leading field; numbers that are not a cue name are
// indices into the listed cues.
func resolveRef(cues []model.Cue, arg string) string {
	ref := output.ParseDmenuLine(arg, "")
	if catalog.LookupByName(cues, ref) != nil {
		return ref
	}
	if idx, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
		if cue := catalog.LookupByIndex(cues, idx); cue != nil {
			return cue.FilePath
		}
	}
	return ref
}
