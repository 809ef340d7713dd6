// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultSampleRate   = 44100
	DefaultChannels     = 1
	DefaultBlockSize    = 1024
	DefaultPollInterval = 100 * time.Millisecond
	DefaultReleaseWait  = 500 * time.Millisecond
	DefaultLevelScale   = 2.0
	DefaultJoinTimeout  = 2 * time.Second
	DefaultAttempts     = 5
	DefaultLockBackoff  = 500 * time.Millisecond
	DefaultRetryBackoff = 300 * time.Millisecond
)

// Config represents the cuedeck configuration.
type Config struct {
	Library   LibraryConfig   `toml:"library"`
	Playback  PlaybackConfig  `toml:"playback"`
	Recording RecordingConfig `toml:"recording"`
	Reclaim   ReclaimConfig   `toml:"reclaim"`
	Notify    NotifyConfig    `toml:"notify"`
	TUI       TUIConfig       `toml:"tui"`
}

// LibraryConfig holds where cues live on disk.
type LibraryConfig struct {
	DataDir    string   `toml:"data_dir"`   // Empty = XDG data dir
	Extensions []string `toml:"extensions"` // Recognised by the directory scan
	Watch      bool     `toml:"watch"`      // Pick up files added from outside
}

// PlaybackConfig holds output device settings.
type PlaybackConfig struct {
	SampleRate   int      `toml:"sample_rate"`   // Speaker rate; files are resampled to it
	Buffer       Duration `toml:"buffer"`        // Speaker buffer length
	Volume       int      `toml:"volume"`        // 0-100
	PollInterval Duration `toml:"poll_interval"` // End-of-playback poll
	ReleaseWait  Duration `toml:"release_wait"`  // Wait inside a device recycle
}

// RecordingConfig holds input capture settings.
type RecordingConfig struct {
	SampleRate   int      `toml:"sample_rate"`
	Channels     int      `toml:"channels"`
	BlockSize    int      `toml:"block_size"`    // Samples per read
	PollInterval Duration `toml:"poll_interval"` // Timer/level refresh
	LevelScale   float64  `toml:"level_scale"`   // Multiplier on mean amplitude
	JoinTimeout  Duration `toml:"join_timeout"`  // Bound on waiting for the capture goroutine
}

// ReclaimConfig holds delete retry settings.
type ReclaimConfig struct {
	Attempts     int      `toml:"attempts"`
	LockBackoff  Duration `toml:"lock_backoff"`  // Multiplied by attempt number
	RetryBackoff Duration `toml:"retry_backoff"` // Fixed, for non-lock failures
}

// NotifyConfig holds desktop notification settings.
type NotifyConfig struct {
	Desktop     bool     `toml:"desktop"`      // Send errors to the notification daemon
	MinInterval Duration `toml:"min_interval"` // Rate limit for identical messages
}

// TUIConfig holds TUI-specific settings.
type TUIConfig struct {
	ShowHelp         bool   `toml:"show_help"`         // Keybind bar under the cue list
	ClipboardCommand string `toml:"clipboard_command"` // Empty = auto-detect wl-copy/xclip/xsel
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			DataDir:    "",
			Extensions: []string{".wav", ".mp3"},
			Watch:      true,
		},
		Playback: PlaybackConfig{
			SampleRate:   DefaultSampleRate,
			Buffer:       Duration(100 * time.Millisecond),
			Volume:       100,
			PollInterval: Duration(DefaultPollInterval),
			ReleaseWait:  Duration(DefaultReleaseWait),
		},
		Recording: RecordingConfig{
			SampleRate:   DefaultSampleRate,
			Channels:     DefaultChannels,
			BlockSize:    DefaultBlockSize,
			PollInterval: Duration(DefaultPollInterval),
			LevelScale:   DefaultLevelScale,
			JoinTimeout:  Duration(DefaultJoinTimeout),
		},
		Reclaim: ReclaimConfig{
			Attempts:     DefaultAttempts,
			LockBackoff:  Duration(DefaultLockBackoff),
			RetryBackoff: Duration(DefaultRetryBackoff),
		},
		Notify: NotifyConfig{
			Desktop:     false,
			MinInterval: Duration(5 * time.Second),
		},
		TUI: TUIConfig{
			ShowHelp: true,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "cuedeck", "config.toml")
}

// DataPath returns the default directory cues are stored in.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "cuedeck", "cues")
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Library.Extensions) == 0 {
		return errors.New("library.extensions must not be empty")
	}
	for _, ext := range c.Library.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}

	if c.Playback.SampleRate <= 0 {
		return fmt.Errorf("playback.sample_rate must be positive, got %d", c.Playback.SampleRate)
	}
	if c.Playback.Volume < 0 || c.Playback.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Playback.Volume)
	}
	if c.Playback.PollInterval.Duration() <= 0 {
		return errors.New("playback.poll_interval must be positive")
	}

	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("recording.sample_rate must be positive, got %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels != 1 && c.Recording.Channels != 2 {
		return fmt.Errorf("recording.channels must be 1 or 2, got %d", c.Recording.Channels)
	}
	if c.Recording.BlockSize <= 0 {
		return fmt.Errorf("recording.block_size must be positive, got %d", c.Recording.BlockSize)
	}
	if c.Recording.PollInterval.Duration() <= 0 {
		return errors.New("recording.poll_interval must be positive")
	}

	if c.Reclaim.Attempts < 1 || c.Reclaim.Attempts > 20 {
		return fmt.Errorf("reclaim.attempts must be between 1 and 20, got %d", c.Reclaim.Attempts)
	}

	return nil
}

// ResolveDataDir returns the configured data directory, falling back to DataPath.
// Expands a leading ~.
func (c *Config) ResolveDataDir() string {
	if c.Library.DataDir == "" {
		return DataPath()
	}
	return expandPath(c.Library.DataDir)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	path := c.ResolveDataDir()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
