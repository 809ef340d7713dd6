// Package console is the single entry point front ends use to drive cuedeck.
//
// Every operation is serialised onto one foreground loop, so the playback
// manager, the recording session and the catalog mutations never run
// concurrently. Errors are logged, reported through Callbacks.OnError and
// returned.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmylchreest/cuedeck/internal/catalog"
	"github.com/jmylchreest/cuedeck/internal/config"
	"github.com/jmylchreest/cuedeck/internal/device"
	"github.com/jmylchreest/cuedeck/internal/loop"
	"github.com/jmylchreest/cuedeck/internal/model"
	"github.com/jmylchreest/cuedeck/internal/playback"
	"github.com/jmylchreest/cuedeck/internal/reclaim"
	"github.com/jmylchreest/cuedeck/internal/recording"
)

// Callbacks report core events to the front end. They run on the loop
// goroutine and must not call back into the Console synchronously.
// Any of them may be nil.
type Callbacks struct {
	OnPlaybackEnded  func(cue model.Cue)
	OnLevelUpdate    func(level float64)
	OnTimerUpdate    func(elapsed time.Duration)
	OnCatalogChanged func()
	OnError          func(message string)
}

// Options configures a Console.
type Options struct {
	Config    *config.Config
	Output    device.Output
	Input     device.Input
	Callbacks Callbacks
	Logger    *slog.Logger
}

// RecorderState is a snapshot of the recording session.
type RecorderState struct {
	Recording bool
	HasTake   bool
	Elapsed   time.Duration
	Level     float64
}

// Console wires the core components together behind one loop.
type Console struct {
	cfg     *config.Config
	dataDir string
	cb      Callbacks
	logger  *slog.Logger

	loop      *loop.Loop
	catalog   *catalog.Catalog
	watcher   *catalog.Watcher
	player    *playback.Manager
	recorder  *recording.Session
	reclaimer *reclaim.Reclaimer

	ctx     context.Context
	cancel  context.CancelFunc
	changes <-chan catalog.ChangeEvent
	relayWG sync.WaitGroup

	closeOnce sync.Once
}

// New builds a Console, scans the data directory and starts the loop.
func New(ctx context.Context, opts Options) (*Console, error) {
	if opts.Output == nil || opts.Input == nil {
		return nil, errors.New("console requires an output and an input device")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataDir := cfg.ResolveDataDir()
	if dataDir == "" {
		return nil, errors.New("no data directory configured and no home directory to default to")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Console{
		cfg:     cfg,
		dataDir: dataDir,
		cb:      opts.Callbacks,
		logger:  logger,
		loop:    loop.New(logger),
		catalog: catalog.New(cfg.Library.Extensions, logger),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.player = playback.NewManager(opts.Output, c.loop, playback.Options{
		PollInterval: cfg.Playback.PollInterval.Duration(),
		OnEnded:      c.playbackEnded,
		Logger:       logger,
	})

	c.reclaimer = reclaim.New(c.player, reclaim.Options{
		Attempts:     cfg.Reclaim.Attempts,
		LockBackoff:  cfg.Reclaim.LockBackoff.Duration(),
		RetryBackoff: cfg.Reclaim.RetryBackoff.Duration(),
		Logger:       logger,
	})

	c.recorder = recording.New(opts.Input, c.catalog, c.loop, recording.Options{
		DataDir:      dataDir,
		SampleRate:   cfg.Recording.SampleRate,
		Channels:     cfg.Recording.Channels,
		BlockSize:    cfg.Recording.BlockSize,
		PollInterval: cfg.Recording.PollInterval.Duration(),
		LevelScale:   cfg.Recording.LevelScale,
		JoinTimeout:  cfg.Recording.JoinTimeout.Duration(),
		OnLevel:      c.cb.OnLevelUpdate,
		OnTimer:      c.cb.OnTimerUpdate,
		OnError:      func(err error) { c.fail("record", err) },
		Release:      c.release,
		Logger:       logger,
	})

	if _, err := c.catalog.Load(dataDir); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load cues: %w", err)
	}

	c.changes = c.catalog.Subscribe()
	c.loop.Start(ctx)
	c.relayWG.Add(1)
	go c.relayChanges()

	if cfg.Library.Watch {
		if err := c.startWatcher(); err != nil {
			logger.Warn("not watching data directory", "dir", dataDir, "error", err)
		}
	}

	logger.Debug("console ready", "data_dir", dataDir, "cues", c.catalog.Count())
	return c, nil
}

// DataDir returns the directory cues are saved to.
func (c *Console) DataDir() string {
	return c.dataDir
}

// Cues returns the catalog entries whose files exist, in catalog order.
func (c *Console) Cues() []model.Cue {
	return c.catalog.Existing()
}

// Lookup resolves ref (index, id, path or name) against the full catalog.
func (c *Console) Lookup(ref string) (model.Cue, bool) {
	return c.catalog.Lookup(ref)
}

// Session returns the playback session and its cue, if any.
func (c *Console) Session() (playback.Session, *model.Cue) {
	var (
		s   playback.Session
		cue *model.Cue
	)
	_ = c.loop.Call(func() error {
		s = c.player.Session()
		if active, ok := c.player.Active(); ok {
			cue = &active
		}
		return nil
	})
	return s, cue
}

// Recorder returns a snapshot of the recording session.
func (c *Console) Recorder() RecorderState {
	var st RecorderState
	_ = c.loop.Call(func() error {
		st = RecorderState{
			Recording: c.recorder.Recording(),
			HasTake:   c.recorder.HasTake(),
			Elapsed:   c.recorder.Elapsed(),
			Level:     c.recorder.Level(),
		}
		return nil
	})
	return st
}

// Play starts the referenced cue, or resumes it if it is the paused one.
func (c *Console) Play(ref string) error {
	return c.do("play", func() error {
		cue, err := c.resolve("play", ref)
		if err != nil {
			return err
		}
		return c.player.Play(cue)
	})
}

// Pause pauses the referenced cue, which must be the one playing.
func (c *Console) Pause(ref string) error {
	return c.do("pause", func() error {
		if err := c.requireActive("pause", ref); err != nil {
			return err
		}
		return c.player.Pause()
	})
}

// Resume continues the referenced cue, which must be the one paused.
func (c *Console) Resume(ref string) error {
	return c.do("resume", func() error {
		if err := c.requireActive("resume", ref); err != nil {
			return err
		}
		return c.player.Resume()
	})
}

// Stop stops playback. An empty ref stops whatever is active; otherwise ref
// must name the active cue.
func (c *Console) Stop(ref string) error {
	return c.do("stop", func() error {
		if ref != "" {
			if err := c.requireActive("stop", ref); err != nil {
				return err
			}
		}
		return c.player.Stop()
	})
}

// DeleteCue removes the referenced cue's file and catalog entry. A cue that
// is playing is stopped first.
func (c *Console) DeleteCue(ref string) error {
	return c.do("delete", func() error {
		cue, err := c.resolve("delete", ref)
		if err != nil {
			return err
		}

		if c.player.IsActive(cue) {
			if err := c.player.Stop(); err != nil {
				c.logger.Warn("failed to stop cue before delete", "cue", cue.Name, "error", err)
			}
		}

		if _, err := os.Stat(cue.FilePath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return model.NewError(model.KindNotFound, "delete", cue.FilePath, err)
			}
			return model.NewError(model.KindIO, "delete", cue.FilePath, err)
		}

		if err := c.reclaimer.Remove(c.ctx, cue.FilePath); err != nil {
			return err
		}
		if _, err := c.catalog.Remove(cue.FilePath); err != nil {
			return model.NewError(model.KindIO, "delete", cue.FilePath, err)
		}

		c.logger.Info("cue deleted", "cue", cue.Name, "path", cue.FilePath)
		return nil
	})
}

// Refresh stops playback and rescans the data directory.
func (c *Console) Refresh() error {
	return c.do("refresh", func() error {
		if err := c.player.Stop(); err != nil {
			c.logger.Warn("failed to stop playback before refresh", "error", err)
		}
		added, err := c.catalog.Load(c.dataDir)
		if err != nil {
			return model.NewError(model.KindIO, "refresh", c.dataDir, err)
		}
		c.logger.Debug("catalog refreshed", "added", added)
		c.catalogChanged()
		return nil
	})
}

// StartRecording begins capturing from the input device.
func (c *Console) StartRecording() error {
	return c.do("record", c.recorder.Start)
}

// StopRecording ends capture and keeps the take for SaveRecording.
func (c *Console) StopRecording() error {
	return c.do("stop recording", c.recorder.Stop)
}

// SaveRecording writes the take as <name>.wav and adds it to the catalog.
func (c *Console) SaveRecording(name, description string) (model.Cue, error) {
	var cue model.Cue
	err := c.do("save recording", func() error {
		saved, err := c.recorder.Save(name, description)
		if err != nil {
			return err
		}
		cue = saved
		return nil
	})
	return cue, err
}

// ImportFile copies src into the data directory as <name><ext> and adds it
// to the catalog. An empty name defaults to the source file's base name.
func (c *Console) ImportFile(src, name, description string) (model.Cue, error) {
	const op = "import"

	var cue model.Cue
	err := c.do(op, func() error {
		name = strings.TrimSpace(name)
		if name == "" {
			name = model.NameFromPath(src)
		}
		if name == "" || strings.ContainsAny(name, `/\`) {
			return model.Errorf(model.KindEmptyInput, op, "invalid cue name %q", name)
		}
		if !model.IsAudioFile(src, c.cfg.Library.Extensions) {
			return model.NewError(model.KindDevice, op, src, device.ErrUnsupportedFormat)
		}
		if _, err := os.Stat(src); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return model.NewError(model.KindNotFound, op, src, err)
			}
			return model.NewError(model.KindIO, op, src, err)
		}

		if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
			return model.NewError(model.KindIO, op, c.dataDir, err)
		}
		dst := filepath.Join(c.dataDir, name+strings.ToLower(filepath.Ext(src)))

		if err := c.release(dst); err != nil {
			return err
		}

		if err := copyFile(src, dst); err != nil {
			return model.NewError(model.KindIO, op, dst, err)
		}

		imported, err := model.NewCue(name, dst, description)
		if err != nil {
			return model.NewError(model.KindIO, op, dst, err)
		}
		if err := c.catalog.Add(*imported); err != nil {
			return model.NewError(model.KindIO, op, dst, err)
		}

		c.logger.Info("cue imported", "cue", name, "from", src, "to", dst)
		cue = *imported
		return nil
	})
	return cue, err
}

// Close stops playback and recording and shuts the loop down. It is safe to
// call more than once.
func (c *Console) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.watcher != nil {
			if werr := c.watcher.Stop(); werr != nil {
				c.logger.Debug("failed to stop directory watcher", "error", werr)
			}
		}

		err = c.loop.Call(func() error {
			return errors.Join(c.recorder.Close(), c.player.Close())
		})
		if errors.Is(err, loop.ErrStopped) {
			err = nil
		}

		c.catalog.Unsubscribe(c.changes)
		c.relayWG.Wait()
		c.cancel()
		c.loop.Stop()
		_ = c.catalog.Close()
	})
	return err
}

// do runs fn on the loop and reports any error it returns.
func (c *Console) do(op string, fn func() error) error {
	err := c.loop.Call(func() error {
		if err := fn(); err != nil {
			c.fail(op, err)
			return err
		}
		return nil
	})
	if errors.Is(err, loop.ErrStopped) {
		return model.Errorf(model.KindInvalidState, op, "console is closed")
	}
	return err
}

func (c *Console) fail(op string, err error) {
	c.logger.Warn("operation failed", "op", op, "kind", model.KindOf(err), "error", err)
	if c.cb.OnError != nil {
		c.cb.OnError(err.Error())
	}
}

// release stops playback when path is the active cue, so the file can be
// overwritten.
func (c *Console) release(path string) error {
	if active, ok := c.player.Active(); ok && active.FilePath == path {
		return c.player.Stop()
	}
	return nil
}

func (c *Console) resolve(op, ref string) (model.Cue, error) {
	cue, ok := c.catalog.Lookup(ref)
	if !ok {
		return model.Cue{}, model.Errorf(model.KindNotFound, op, "no cue matches %q", ref)
	}
	return cue, nil
}

func (c *Console) requireActive(op, ref string) error {
	cue, err := c.resolve(op, ref)
	if err != nil {
		return err
	}
	if !c.player.IsActive(cue) {
		return model.Errorf(model.KindInvalidState, op, "%s is not playing", cue.Name)
	}
	return nil
}

func (c *Console) playbackEnded(cue model.Cue) {
	if c.cb.OnPlaybackEnded != nil {
		c.cb.OnPlaybackEnded(cue)
	}
}

func (c *Console) catalogChanged() {
	if c.cb.OnCatalogChanged != nil {
		c.cb.OnCatalogChanged()
	}
}

// relayChanges forwards catalog change events to the front end on the loop.
func (c *Console) relayChanges() {
	defer c.relayWG.Done()
	for range c.changes {
		c.loop.Post(c.catalogChanged)
	}
}

func (c *Console) startWatcher() error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return err
	}
	w, err := catalog.NewWatcher(c.catalog, c.dataDir, c.logger)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return err
	}
	c.watcher = w
	return nil
}

func copyFile(src, dst string) (err error) {
	if same, serr := sameFile(src, dst); serr == nil && same {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}
