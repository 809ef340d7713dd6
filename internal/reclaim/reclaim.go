// Package reclaim deletes cue files that the audio subsystem may still hold
// open.
package reclaim

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/jmylchreest/cuedeck/internal/model"
)

// Defaults match the output subsystem's observed release behaviour.
const (
	DefaultAttempts     = 5
	DefaultLockBackoff  = 500 * time.Millisecond
	DefaultRetryBackoff = 300 * time.Millisecond
)

// Recycler releases handles the output device keeps on loaded files.
type Recycler interface {
	Recycle() error
}

// Options configures a Reclaimer.
type Options struct {
	Attempts     int
	LockBackoff  time.Duration
	RetryBackoff time.Duration
	Logger       *slog.Logger
}

// Reclaimer removes files, recycling the output device between attempts
// that fail because the file is locked.
type Reclaimer struct {
	recycler Recycler
	opts     Options
	logger   *slog.Logger

	// Swapped in tests.
	sleep     func(ctx context.Context, d time.Duration) error
	checkLock func(path string) error
	remove    func(path string) error
}

// New creates a Reclaimer. recycler may be nil, in which case lock failures
// are only retried.
func New(recycler Recycler, opts Options) *Reclaimer {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.LockBackoff <= 0 {
		opts.LockBackoff = DefaultLockBackoff
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reclaimer{
		recycler:  recycler,
		opts:      opts,
		logger:    logger.With("component", "reclaim"),
		sleep:     sleepContext,
		checkLock: checkLock,
		remove:    os.Remove,
	}
}

// Remove deletes path. Where the platform has mandatory locking each
// attempt first checks the file for a lock, then removes it. A missing file
// fails immediately with a NotFound error. Exhausting the attempts returns a
// LockedResource error if the last failure was a lock, otherwise an IO error.
func (r *Reclaimer) Remove(ctx context.Context, path string) error {
	const op = "delete"

	var lastErr error
	for attempt := 0; attempt < r.opts.Attempts; attempt++ {
		err := r.try(path)
		if err == nil {
			if attempt > 0 {
				r.logger.Debug("file reclaimed", "path", path, "attempts", attempt+1)
			}
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return model.NewError(model.KindNotFound, op, path, err)
		}
		lastErr = err

		if attempt == r.opts.Attempts-1 {
			break
		}

		wait := r.opts.RetryBackoff
		if isLocked(err) {
			r.logger.Debug("file locked, recycling output", "path", path, "attempt", attempt+1, "error", err)
			if r.recycler != nil {
				if rerr := r.recycler.Recycle(); rerr != nil {
					r.logger.Warn("failed to recycle output", "error", rerr)
				}
			}
			wait = r.opts.LockBackoff * time.Duration(attempt+1)
		} else {
			r.logger.Debug("delete failed, retrying", "path", path, "attempt", attempt+1, "error", err)
		}

		if err := r.sleep(ctx, wait); err != nil {
			return model.NewError(model.KindIO, op, path, err)
		}
	}

	if isLocked(lastErr) {
		return model.NewError(model.KindLockedResource, op, path, lastErr)
	}
	return model.NewError(model.KindIO, op, path, lastErr)
}

func (r *Reclaimer) try(path string) error {
	if err := r.checkLock(path); err != nil {
		return err
	}
	return r.remove(path)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isLocked reports whether err means the file is held by another handle or
// is not writable by us.
func isLocked(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	return isPlatformLock(err)
}
