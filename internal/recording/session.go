// Package recording captures microphone input into a buffer and saves it as
// a cue.
//
// The capture loop runs on its own goroutine and owns the captured blocks
// until it exits. Everything else on a Session must run on the foreground
// loop.
package recording

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/cuedeck/internal/device"
	"github.com/jmylchreest/cuedeck/internal/loop"
	"github.com/jmylchreest/cuedeck/internal/model"
)

// Defaults for the capture format and meters.
const (
	DefaultSampleRate   = 44100
	DefaultChannels     = 1
	DefaultBlockSize    = 1024
	DefaultPollInterval = 100 * time.Millisecond
	DefaultLevelScale   = 2.0
	DefaultJoinTimeout  = 2 * time.Second
)

// Library receives saved recordings.
type Library interface {
	Add(cue model.Cue) error
}

// Options configures a Session.
type Options struct {
	DataDir      string
	SampleRate   int
	Channels     int
	BlockSize    int
	PollInterval time.Duration
	LevelScale   float64
	JoinTimeout  time.Duration

	OnLevel func(level float64)
	OnTimer func(elapsed time.Duration)
	OnError func(err error)

	// Release, if set, is called with the destination before a save writes
	// it, so whoever holds that file open can let go.
	Release func(path string) error

	Logger *slog.Logger
}

// Take is a stopped recording waiting to be saved.
type Take struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Blocks     int
}

// Duration returns the length of the take.
func (t *Take) Duration() time.Duration {
	frames := len(t.Samples) / t.Channels
	return time.Duration(frames) * time.Second / time.Duration(t.SampleRate)
}

type captureResult struct {
	blocks [][]float32
	err    error
}

// Session records from a device.Input.
type Session struct {
	in    device.Input
	lib   Library
	sched loop.Scheduler
	opts  Options

	logger *slog.Logger
	now    func() time.Time

	recording bool
	started   time.Time
	elapsed   time.Duration
	level     float64
	cancel    context.CancelFunc
	result    chan captureResult
	poll      loop.Poll
	take      *Take

	// Written by the capture goroutine.
	last   atomic.Pointer[[]float32]
	blocks atomic.Int64
}

// New creates an idle Session.
func New(in device.Input, lib Library, sched loop.Scheduler, opts Options) *Session {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.LevelScale <= 0 {
		opts.LevelScale = DefaultLevelScale
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		in:     in,
		lib:    lib,
		sched:  sched,
		opts:   opts,
		logger: logger.With("component", "recording"),
		now:    time.Now,
	}
}

// Recording reports whether capture is running.
func (s *Session) Recording() bool {
	return s.recording
}

// HasTake reports whether a stopped recording is waiting to be saved.
func (s *Session) HasTake() bool {
	return s.take != nil
}

// Take returns the unsaved recording, if any.
func (s *Session) Take() *Take {
	return s.take
}

// Elapsed returns the running time of the current or last recording.
func (s *Session) Elapsed() time.Duration {
	if s.recording {
		return s.now().Sub(s.started)
	}
	return s.elapsed
}

// Blocks returns how many blocks the running capture has delivered.
func (s *Session) Blocks() int {
	return int(s.blocks.Load())
}

// Level returns the last reported input level in [0, 1].
func (s *Session) Level() float64 {
	return s.level
}

// Start opens the input and begins capturing. Any unsaved take is discarded.
func (s *Session) Start() error {
	const op = "record"

	if s.recording {
		return model.Errorf(model.KindInvalidState, op, "already recording")
	}

	stream, err := s.in.Open(s.opts.SampleRate, s.opts.Channels, s.opts.BlockSize)
	if err != nil {
		return model.NewError(model.KindDevice, op, "", err)
	}

	if s.take != nil {
		s.logger.Debug("discarding unsaved take", "blocks", s.take.Blocks)
		s.take = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.result = make(chan captureResult, 1)
	s.last.Store(nil)
	s.blocks.Store(0)
	s.level = 0
	s.elapsed = 0
	s.started = s.now()
	s.recording = true

	go s.capture(ctx, stream, s.result)
	s.poll = s.sched.Every(s.opts.PollInterval, s.tick)

	s.logger.Debug("recording started",
		"sample_rate", s.opts.SampleRate,
		"channels", s.opts.Channels,
		"block_size", s.opts.BlockSize,
	)
	return nil
}

// Stop ends capture and keeps what was recorded as the current take.
func (s *Session) Stop() error {
	const op = "stop recording"

	if !s.recording {
		return model.Errorf(model.KindInvalidState, op, "not recording")
	}

	s.cancel()

	timer := time.NewTimer(s.opts.JoinTimeout)
	defer timer.Stop()

	select {
	case res := <-s.result:
		s.finish(res)
		if res.err != nil {
			s.logger.Warn("capture ended with error", "error", res.err)
		}
		return nil
	case <-timer.C:
		s.finish(captureResult{})
		s.take = nil
		return model.Errorf(model.KindDevice, op, "capture did not stop within %s", s.opts.JoinTimeout)
	}
}

// Save writes the take to <data_dir>/<name>.wav and adds it to the library.
// An existing file of the same name is overwritten.
func (s *Session) Save(name, description string) (model.Cue, error) {
	const op = "save recording"

	name = strings.TrimSpace(name)
	if name == "" {
		return model.Cue{}, model.Errorf(model.KindEmptyInput, op, "recording name is empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return model.Cue{}, model.Errorf(model.KindEmptyInput, op, "recording name %q contains a path separator", name)
	}
	if s.recording {
		return model.Cue{}, model.Errorf(model.KindInvalidState, op, "still recording")
	}
	if s.take == nil || len(s.take.Samples) == 0 {
		return model.Cue{}, model.Errorf(model.KindEmptyInput, op, "nothing recorded")
	}

	if err := os.MkdirAll(s.opts.DataDir, 0o755); err != nil {
		return model.Cue{}, model.NewError(model.KindIO, op, s.opts.DataDir, err)
	}

	path := filepath.Join(s.opts.DataDir, name+".wav")
	if s.opts.Release != nil {
		if err := s.opts.Release(path); err != nil {
			return model.Cue{}, err
		}
	}
	if err := writeWAV(path, s.take.Samples, s.take.SampleRate, s.take.Channels); err != nil {
		return model.Cue{}, model.NewError(model.KindIO, op, path, err)
	}

	cue, err := model.NewCue(name, path, description)
	if err != nil {
		return model.Cue{}, model.NewError(model.KindIO, op, path, err)
	}
	if err := s.lib.Add(*cue); err != nil {
		return model.Cue{}, model.NewError(model.KindIO, op, path, err)
	}

	s.logger.Debug("recording saved", "path", path, "duration", s.take.Duration())
	s.take = nil
	return *cue, nil
}

// Close stops any running capture and drops the take.
func (s *Session) Close() error {
	var err error
	if s.recording {
		err = s.Stop()
	}
	s.take = nil
	return err
}

// capture reads blocks until ctx is cancelled or the stream fails. It owns
// blocks until it hands them over on out.
func (s *Session) capture(ctx context.Context, stream device.Stream, out chan<- captureResult) {
	var blocks [][]float32
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = model.NewError(model.KindDevice, "record", "", fmt.Errorf("capture panicked: %v", r))
		}
		if cerr := stream.Close(); cerr != nil && err == nil {
			s.logger.Debug("failed to close input stream", "error", cerr)
		}
		out <- captureResult{blocks: blocks, err: err}
	}()

	for ctx.Err() == nil {
		block, rerr := stream.Read()
		if rerr != nil {
			if ctx.Err() != nil {
				return
			}
			err = model.NewError(model.KindDevice, "record", "", rerr)
			return
		}
		if len(block) == 0 {
			continue
		}
		blocks = append(blocks, block)
		s.last.Store(&block)
		s.blocks.Add(1)
	}
}

// tick runs on the foreground while recording.
func (s *Session) tick() {
	if !s.recording {
		return
	}

	select {
	case res := <-s.result:
		// Capture exited without being asked to.
		s.finish(res)
		if res.err == nil {
			res.err = model.Errorf(model.KindDevice, "record", "input stream ended")
		}
		s.logger.Warn("recording stopped by device", "error", res.err)
		if s.opts.OnError != nil {
			s.opts.OnError(res.err)
		}
		return
	default:
	}

	s.level = s.measure()
	if s.opts.OnTimer != nil {
		s.opts.OnTimer(s.Elapsed())
	}
	if s.opts.OnLevel != nil {
		s.opts.OnLevel(s.level)
	}
}

// finish tears the session down after the capture goroutine has exited (or
// been abandoned) and keeps whatever it captured.
func (s *Session) finish(res captureResult) {
	if s.poll != nil {
		s.poll.Cancel()
		s.poll = nil
	}
	s.elapsed = s.now().Sub(s.started)
	s.recording = false
	s.cancel = nil
	s.result = nil
	s.level = 0
	if s.opts.OnLevel != nil {
		s.opts.OnLevel(0)
	}

	if len(res.blocks) == 0 {
		s.take = nil
		s.logger.Debug("recording stopped with no audio")
		return
	}

	n := 0
	for _, b := range res.blocks {
		n += len(b)
	}
	samples := make([]float32, 0, n)
	for _, b := range res.blocks {
		samples = append(samples, b...)
	}

	s.take = &Take{
		Samples:    samples,
		SampleRate: s.opts.SampleRate,
		Channels:   s.opts.Channels,
		Blocks:     len(res.blocks),
	}
	s.logger.Debug("recording stopped", "blocks", len(res.blocks), "duration", s.take.Duration())
}

// measure returns the scaled mean absolute amplitude of the latest block.
func (s *Session) measure() float64 {
	p := s.last.Load()
	if p == nil || len(*p) == 0 {
		return 0
	}
	return Level(*p, s.opts.LevelScale)
}

// Level returns clamp(mean(|x|) * scale, 0, 1).
func Level(block []float32, scale float64) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, v := range block {
		sum += math.Abs(float64(v))
	}
	level := sum / float64(len(block)) * scale
	return math.Max(0, math.Min(1, level))
}
