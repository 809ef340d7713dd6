// Package playback implements the single-stream playback state machine.
//
// A Manager is not safe for concurrent use: every method, and the
// end-of-playback poll, must run on the same foreground loop.
package playback

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/jmylchreest/cuedeck/internal/device"
	"github.com/jmylchreest/cuedeck/internal/loop"
	"github.com/jmylchreest/cuedeck/internal/model"
)

// DefaultPollInterval is how often the end-of-playback poll checks the device.
const DefaultPollInterval = 100 * time.Millisecond

// State is the playback session state.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Session describes the active playback. FilePath is empty iff State is Idle.
type Session struct {
	FilePath string
	PausedAt time.Duration
	State    State
}

// Options configures a Manager.
type Options struct {
	PollInterval time.Duration
	// OnEnded is called once per session, after it has been torn down.
	OnEnded func(model.Cue)
	Logger  *slog.Logger
}

// Manager owns the output device and at most one playback session.
type Manager struct {
	out   device.Output
	sched loop.Scheduler
	opts  Options

	logger  *slog.Logger
	session Session
	cue     model.Cue
	poll    loop.Poll
}

// NewManager creates an idle manager.
func NewManager(out device.Output, sched loop.Scheduler, opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		out:    out,
		sched:  sched,
		opts:   opts,
		logger: logger.With("component", "playback"),
	}
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	return m.session
}

// Active returns the cue being played or paused.
func (m *Manager) Active() (model.Cue, bool) {
	if m.session.State == Idle {
		return model.Cue{}, false
	}
	return m.cue, true
}

// IsActive reports whether cue is the one being played or paused.
func (m *Manager) IsActive(cue model.Cue) bool {
	return m.session.State != Idle && m.session.FilePath == cue.FilePath
}

// Play starts cue from the beginning. If cue is the paused active cue it
// is resumed instead. Any other active session is stopped first.
func (m *Manager) Play(cue model.Cue) error {
	const op = "play"

	if m.session.State == Paused && m.session.FilePath == cue.FilePath {
		return m.Resume()
	}

	if _, err := os.Stat(cue.FilePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.NewError(model.KindNotFound, op, cue.FilePath, err)
		}
		return model.NewError(model.KindIO, op, cue.FilePath, err)
	}

	if err := m.Stop(); err != nil {
		return err
	}

	if err := m.out.Load(cue.FilePath); err != nil {
		m.abort()
		return model.NewError(model.KindDevice, op, cue.FilePath, err)
	}
	if err := m.out.Play(); err != nil {
		m.abort()
		return model.NewError(model.KindDevice, op, cue.FilePath, err)
	}

	m.cue = cue
	m.session = Session{FilePath: cue.FilePath, State: Playing}
	m.startPoll()

	m.logger.Debug("playback started", "cue", cue.Name, "path", cue.FilePath)
	return nil
}

// Pause pauses the playing cue.
func (m *Manager) Pause() error {
	if m.session.State != Playing {
		return model.Errorf(model.KindInvalidState, "pause", "nothing is playing")
	}

	pos, err := m.out.Pause()
	if err != nil {
		return model.NewError(model.KindDevice, "pause", m.session.FilePath, err)
	}

	m.cancelPoll()
	m.session.PausedAt = pos
	m.session.State = Paused

	m.logger.Debug("playback paused", "cue", m.cue.Name, "at", pos)
	return nil
}

// Resume continues the paused cue.
func (m *Manager) Resume() error {
	if m.session.State != Paused {
		return model.Errorf(model.KindInvalidState, "resume", "nothing is paused")
	}

	if err := m.out.Resume(); err != nil {
		return model.NewError(model.KindDevice, "resume", m.session.FilePath, err)
	}

	m.session.State = Playing
	m.startPoll()

	m.logger.Debug("playback resumed", "cue", m.cue.Name)
	return nil
}

// Stop ends the active session and recycles the device so the OS releases
// the file. It is a no-op when idle and returns once the recycle is done.
func (m *Manager) Stop() error {
	if m.session.State == Idle {
		return nil
	}

	cue := m.cue
	m.cancelPoll()
	if err := m.out.Stop(); err != nil {
		m.logger.Warn("failed to stop output", "path", cue.FilePath, "error", err)
	}
	m.reset()
	m.ended(cue)

	if err := m.out.Recycle(); err != nil {
		return model.NewError(model.KindDevice, "stop", cue.FilePath, err)
	}

	m.logger.Debug("playback stopped", "cue", cue.Name)
	return nil
}

// Recycle reinitialises the output device. The active session, if any, is
// stopped first.
func (m *Manager) Recycle() error {
	if m.session.State != Idle {
		return m.Stop()
	}
	if err := m.out.Recycle(); err != nil {
		return model.NewError(model.KindDevice, "recycle", "", err)
	}
	return nil
}

// Close stops playback and shuts the output down.
func (m *Manager) Close() error {
	m.cancelPoll()
	if m.session.State != Idle {
		cue := m.cue
		_ = m.out.Stop()
		m.reset()
		m.ended(cue)
	}
	return m.out.Close()
}

func (m *Manager) startPoll() {
	m.cancelPoll()
	m.poll = m.sched.Every(m.opts.PollInterval, m.checkEnded)
}

func (m *Manager) cancelPoll() {
	if m.poll != nil {
		m.poll.Cancel()
		m.poll = nil
	}
}

// checkEnded runs on every poll tick and tears down the session once the
// device has drained the stream.
func (m *Manager) checkEnded() {
	if m.session.State != Playing || m.out.Busy() {
		return
	}

	cue := m.cue
	m.cancelPoll()
	if err := m.out.Stop(); err != nil {
		m.logger.Warn("failed to unload finished cue", "path", cue.FilePath, "error", err)
	}
	m.reset()

	m.logger.Debug("playback finished", "cue", cue.Name)
	m.ended(cue)
}

// abort discards a half-started session.
func (m *Manager) abort() {
	_ = m.out.Stop()
	m.reset()
}

func (m *Manager) reset() {
	m.session = Session{}
	m.cue = model.Cue{}
}

func (m *Manager) ended(cue model.Cue) {
	if m.opts.OnEnded != nil {
		m.opts.OnEnded(cue)
	}
}
