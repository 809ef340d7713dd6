package device

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// SpeakerOptions configures a Speaker.
type SpeakerOptions struct {
	SampleRate  int           // Output rate; files at other rates are resampled
	Buffer      time.Duration // Speaker buffer length
	Volume      float64       // 0.0 to 1.0
	ReleaseWait time.Duration // Wait between suspend and resume in Recycle
}

// mixer is the subset of the beep speaker package a Speaker drives.
type mixer interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Clear()
	Suspend() error
	Resume() error
	Lock()
	Unlock()
}

type beepMixer struct{}

func (beepMixer) Init(rate beep.SampleRate, bufferSize int) error { return speaker.Init(rate, bufferSize) }
func (beepMixer) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (beepMixer) Clear() { speaker.Clear() }
func (beepMixer) Suspend() error { return speaker.Suspend() }
func (beepMixer) Resume() error { return speaker.Resume() }
func (beepMixer) Lock() { speaker.Lock() }
func (beepMixer) Unlock() { speaker.Unlock() }

// The beep speaker can be initialised only once per process, even after
// speaker.Close. It is opened on first use and only suspended afterwards.
var (
	output      mixer = beepMixer{}
	outputMu    sync.Mutex
	outputReady bool
	outputRate  beep.SampleRate
)

// openOutput initialises the shared speaker, or resumes it if it is already
// initialised. It returns the rate the speaker runs at.
func openOutput(rate beep.SampleRate, bufferSize int) (beep.SampleRate, error) {
	outputMu.Lock()
	defer outputMu.Unlock()

	if !outputReady {
		if err := output.Init(rate, bufferSize); err != nil {
			return 0, fmt.Errorf("failed to initialize speaker: %w", err)
		}
		outputReady = true
		outputRate = rate
		return rate, nil
	}
	if err := output.Resume(); err != nil {
		return 0, fmt.Errorf("failed to resume speaker: %w", err)
	}
	return outputRate, nil
}

// Speaker is the Output implementation backed by the beep speaker.
type Speaker struct {
	mu     sync.Mutex
	logger *slog.Logger
	opts   SpeakerOptions

	// Whether this speaker holds the shared output open, and at what rate
	initialized bool
	rate        beep.SampleRate

	// Currently loaded file
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	path     string
	done     *atomic.Bool
}

// NewSpeaker creates a new speaker output. The speaker itself is initialised
// lazily on the first Play.
func NewSpeaker(opts SpeakerOptions, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 100 * time.Millisecond
	}
	if opts.Volume < 0 {
		opts.Volume = 0
	}
	if opts.Volume > 1 {
		opts.Volume = 1
	}

	return &Speaker{
		logger: logger,
		opts:   opts,
	}
}

// Load implements Output.
func (s *Speaker) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unloadLocked()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open sound file: %w", err)
	}

	streamer, format, err := decode(f, path)
	if err != nil {
		_ = f.Close()
		return err
	}

	s.file = f
	s.streamer = streamer
	s.format = format
	s.path = path
	s.logger.Debug("loaded sound", "path", path, "sample_rate", format.SampleRate, "channels", format.NumChannels)
	return nil
}

// decode picks a decoder by file extension.
func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode sound: %w", err)
	}
	return streamer, format, nil
}

// Play implements Output.
func (s *Speaker) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamer == nil {
		return ErrNotLoaded
	}

	if err := s.ensureInitializedLocked(); err != nil {
		return err
	}

	if err := s.streamer.Seek(0); err != nil {
		return fmt.Errorf("failed to rewind sound: %w", err)
	}

	var streamer beep.Streamer = s.streamer

	if s.format.SampleRate != s.rate {
		streamer = beep.Resample(4, s.format.SampleRate, s.rate, streamer)
	}

	if s.opts.Volume < 1.0 {
		streamer = &effects.Volume{
			Streamer: streamer,
			Base:     2,
			Volume:   volumeToExponent(s.opts.Volume),
			Silent:   s.opts.Volume == 0,
		}
	}

	done := &atomic.Bool{}
	s.done = done
	s.ctrl = &beep.Ctrl{Streamer: beep.Seq(streamer, beep.Callback(func() {
		done.Store(true)
	}))}

	output.Play(s.ctrl)
	return nil
}

// Pause implements Output.
func (s *Speaker) Pause() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return 0, ErrNotLoaded
	}

	output.Lock()
	s.ctrl.Paused = true
	pos := s.streamer.Position()
	output.Unlock()

	return s.format.SampleRate.D(pos), nil
}

// Resume implements Output.
func (s *Speaker) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return ErrNotLoaded
	}

	output.Lock()
	s.ctrl.Paused = false
	output.Unlock()
	return nil
}

// Busy implements Output. A paused file is still busy.
func (s *Speaker) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ctrl != nil && !s.done.Load()
}

// Stop implements Output.
func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unloadLocked()
	return nil
}

// unloadLocked stops playback and closes the loaded file.
func (s *Speaker) unloadLocked() {
	if s.initialized {
		output.Clear()
	}
	if s.streamer != nil {
		if err := s.streamer.Close(); err != nil {
			s.logger.Debug("failed to close decoder", "path", s.path, "error", err)
		}
	}
	if s.file != nil {
		// The decoder may already have closed it
		_ = s.file.Close()
	}
	if s.path != "" {
		s.logger.Debug("unloaded sound", "path", s.path)
	}

	s.file = nil
	s.streamer = nil
	s.ctrl = nil
	s.done = nil
	s.path = ""
}

// Recycle implements Output. The file is unloaded and the device suspended
// for ReleaseWait so the OS drops its handles, then resumed.
func (s *Speaker) Recycle() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unloadLocked()

	if !s.initialized {
		time.Sleep(s.opts.ReleaseWait)
		return nil
	}

	if err := output.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend speaker: %w", err)
	}

	time.Sleep(s.opts.ReleaseWait)

	if err := output.Resume(); err != nil {
		s.initialized = false
		return fmt.Errorf("failed to resume speaker: %w", err)
	}
	s.logger.Debug("speaker recycled", "release_wait", s.opts.ReleaseWait)
	return nil
}

// Close implements Output. The shared device is suspended rather than
// closed so a later Speaker can resume it.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unloadLocked()
	if !s.initialized {
		return nil
	}
	s.initialized = false
	if err := output.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend speaker: %w", err)
	}
	s.logger.Debug("speaker closed")
	return nil
}

// ensureInitializedLocked opens the shared output if this speaker has not.
func (s *Speaker) ensureInitializedLocked() error {
	if s.initialized {
		return nil
	}

	want := beep.SampleRate(s.opts.SampleRate)
	bufferSize := want.N(s.opts.Buffer)

	rate, err := openOutput(want, bufferSize)
	if err != nil {
		return err
	}

	s.initialized = true
	s.rate = rate
	s.logger.Debug("speaker initialized", "sample_rate", rate, "buffer_size", bufferSize)
	return nil
}

// volumeToExponent converts a linear volume (0-1) to a base-2 exponent
// for effects.Volume.
func volumeToExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	return math.Log2(volume)
}
