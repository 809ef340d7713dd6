//go:build unix

package reclaim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/jmylchreest/cuedeck/internal/model"
)

// lockedFile simulates an output device that holds a file until it has been
// recycled a number of times.
type lockedFile struct {
	holdFor  int
	recycles int
}

func (l *lockedFile) Recycle() error {
	l.recycles++
	return nil
}

func (l *lockedFile) checkLock(path string) error {
	if l.recycles < l.holdFor {
		return &fs.PathError{Op: "open", Path: path, Err: unix.EBUSY}
	}
	return nil
}

type sleepLog struct {
	waits []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func newTestReclaimer(rec Recycler) (*Reclaimer, *sleepLog) {
	r := New(rec, Options{})
	log := &sleepLog{}
	r.sleep = log.sleep
	return r, log
}

func writeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cue.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

func TestNew_Defaults(t *testing.T) {
	r := New(nil, Options{})
	assert.Equal(t, DefaultAttempts, r.opts.Attempts)
	assert.Equal(t, DefaultLockBackoff, r.opts.LockBackoff)
	assert.Equal(t, DefaultRetryBackoff, r.opts.RetryBackoff)
}

func TestReclaimer_RemoveUnlocked(t *testing.T) {
	path := writeFile(t)
	rec := &lockedFile{}
	r, log := newTestReclaimer(rec)

	require.NoError(t, r.Remove(context.Background(), path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, rec.recycles)
	assert.Empty(t, log.waits)
}

func TestReclaimer_RemoveReadOnlyFile(t *testing.T) {
	path := writeFile(t)
	require.NoError(t, os.Chmod(path, 0o444))
	rec := &lockedFile{}
	r, log := newTestReclaimer(rec)

	require.NoError(t, r.Remove(context.Background(), path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, rec.recycles)
	assert.Empty(t, log.waits)
}

func TestReclaimer_RemoveMissing(t *testing.T) {
	r, log := newTestReclaimer(&lockedFile{})

	err := r.Remove(context.Background(), filepath.Join(t.TempDir(), "none.wav"))
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, log.waits)
}

func TestReclaimer_ReclaimableLock(t *testing.T) {
	path := writeFile(t)
	rec := &lockedFile{holdFor: 2}
	r, log := newTestReclaimer(rec)
	r.checkLock = rec.checkLock

	require.NoError(t, r.Remove(context.Background(), path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 2, rec.recycles)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, log.waits)
}

func TestReclaimer_PersistentLock(t *testing.T) {
	path := writeFile(t)
	rec := &lockedFile{holdFor: 100}
	r, log := newTestReclaimer(rec)
	r.checkLock = rec.checkLock

	err := r.Remove(context.Background(), path)
	assert.ErrorIs(t, err, model.ErrLockedResource)
	assert.Equal(t, model.KindLockedResource, model.KindOf(err))

	// File untouched
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)

	// Recycle and back off before each of the four retries
	assert.Equal(t, 4, rec.recycles)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2000 * time.Millisecond,
	}, log.waits)
}

func TestReclaimer_OtherErrors(t *testing.T) {
	path := writeFile(t)
	rec := &lockedFile{}
	r, log := newTestReclaimer(rec)

	calls := 0
	r.remove = func(p string) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("flaky filesystem")
		}
		return os.Remove(p)
	}

	require.NoError(t, r.Remove(context.Background(), path))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, rec.recycles)
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond}, log.waits)
}

func TestReclaimer_OtherErrorsExhausted(t *testing.T) {
	path := writeFile(t)
	r, _ := newTestReclaimer(nil)
	r.remove = func(string) error { return errors.New("disk on fire") }

	err := r.Remove(context.Background(), path)
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestReclaimer_NilRecycler(t *testing.T) {
	path := writeFile(t)
	lock := &lockedFile{holdFor: 100}
	r, _ := newTestReclaimer(nil)
	r.checkLock = lock.checkLock

	err := r.Remove(context.Background(), path)
	assert.ErrorIs(t, err, model.ErrLockedResource)
}

func TestReclaimer_ContextCancelled(t *testing.T) {
	path := writeFile(t)
	rec := &lockedFile{holdFor: 100}
	r := New(rec, Options{LockBackoff: time.Hour})
	r.checkLock = rec.checkLock

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := r.Remove(ctx, path)
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, rec.recycles)
}

func TestIsLocked(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"permission", fs.ErrPermission, true},
		{"busy", &fs.PathError{Op: "remove", Path: "x", Err: unix.EBUSY}, true},
		{"text busy", unix.ETXTBSY, true},
		{"generic", errors.New("nope"), false},
		{"not exist", fs.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocked(tt.err))
		})
	}
}
