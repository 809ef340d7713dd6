package recording

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jmylchreest/cuedeck/internal/catalog"
	"github.com/jmylchreest/cuedeck/internal/device/devicetest"
	"github.com/jmylchreest/cuedeck/internal/loop"
	"github.com/jmylchreest/cuedeck/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	levels []float64
	timers []time.Duration
	errs   []error
}

func (r *recorder) level(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, v)
}

func (r *recorder) timer(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers = append(r.timers, d)
}

func (r *recorder) err(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

type harness struct {
	s     *Session
	in    *devicetest.Input
	cat   *catalog.Catalog
	sched *loop.Manual
	rec   *recorder
	dir   string
}

func newHarness(t *testing.T, in *devicetest.Input, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		in:    in,
		cat:   catalog.New(nil, nil),
		sched: loop.NewManual(),
		rec:   &recorder{},
		dir:   filepath.Join(t.TempDir(), "cues"),
	}
	opts := Options{
		DataDir: h.dir,
		OnLevel: h.rec.level,
		OnTimer: h.rec.timer,
		OnError: h.rec.err,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	h.s = New(in, h.cat, h.sched, opts)
	t.Cleanup(func() {
		_ = h.s.Close()
		_ = h.cat.Close()
	})
	return h
}

func blocks(n int, v float32) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = devicetest.Block(DefaultBlockSize, v)
	}
	return out
}

func (h *harness) waitBlocks(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.s.Blocks() >= n
	}, 2*time.Second, time.Millisecond)
}

func TestNew_Defaults(t *testing.T) {
	s := New(&devicetest.Input{}, catalog.New(nil, nil), loop.NewManual(), Options{})
	assert.Equal(t, 44100, s.opts.SampleRate)
	assert.Equal(t, 1, s.opts.Channels)
	assert.Equal(t, 1024, s.opts.BlockSize)
	assert.Equal(t, 100*time.Millisecond, s.opts.PollInterval)
	assert.Equal(t, 2.0, s.opts.LevelScale)
	assert.Equal(t, 2*time.Second, s.opts.JoinTimeout)
}

func TestSession_RecordAndSave(t *testing.T) {
	h := newHarness(t, &devicetest.Input{Blocks: blocks(3, 0.1)})

	require.NoError(t, h.s.Start())
	assert.True(t, h.s.Recording())
	rate, channels, blockSize := h.in.Params()
	assert.Equal(t, 44100, rate)
	assert.Equal(t, 1, channels)
	assert.Equal(t, 1024, blockSize)
	assert.Equal(t, 1, h.sched.Active())

	h.waitBlocks(t, 3)
	require.NoError(t, h.s.Stop())

	assert.False(t, h.s.Recording())
	assert.Equal(t, 0, h.sched.Active())
	assert.True(t, h.in.LastStream().Closed())
	require.True(t, h.s.HasTake())
	assert.Equal(t, 3, h.s.Take().Blocks)
	assert.Len(t, h.s.Take().Samples, 3*1024)

	cue, err := h.s.Save("  clap ", "hands")
	require.NoError(t, err)
	assert.Equal(t, "clap", cue.Name)
	assert.Equal(t, "hands", cue.Description)
	assert.Equal(t, filepath.Join(h.dir, "clap.wav"), cue.FilePath)
	assert.False(t, h.s.HasTake())

	got, ok := h.cat.Get(cue.FilePath)
	require.True(t, ok)
	assert.Equal(t, cue.ID, got.ID)
	assert.Equal(t, 1, h.cat.Count())

	// Read the file back
	f, err := os.Open(cue.FilePath)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 44100, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.NumChannels)
	assert.Equal(t, 16, int(dec.BitDepth))
	assert.Len(t, buf.Data, 3*1024)
	assert.InDelta(t, 3277, buf.Data[0], 1)
}

func TestSession_SaveOverwritesSameName(t *testing.T) {
	h := newHarness(t, &devicetest.Input{Blocks: blocks(1, 0.5)})

	for i := 0; i < 2; i++ {
		require.NoError(t, h.s.Start())
		h.waitBlocks(t, 1)
		require.NoError(t, h.s.Stop())
		_, err := h.s.Save("take", "")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, h.cat.Count())
}

func TestSession_SaveRejected(t *testing.T) {
	t.Run("no take", func(t *testing.T) {
		h := newHarness(t, &devicetest.Input{})
		_, err := h.s.Save("clap", "")
		assert.ErrorIs(t, err, model.ErrEmptyInput)
		assert.Equal(t, 0, h.cat.Count())
		_, statErr := os.Stat(h.dir)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("empty name", func(t *testing.T) {
		h := newHarness(t, &devicetest.Input{Blocks: blocks(1, 0.1)})
		require.NoError(t, h.s.Start())
		h.waitBlocks(t, 1)
		require.NoError(t, h.s.Stop())

		_, err := h.s.Save("   ", "")
		assert.ErrorIs(t, err, model.ErrEmptyInput)
		assert.True(t, h.s.HasTake())
		assert.Equal(t, 0, h.cat.Count())
	})

	t.Run("path separator", func(t *testing.T) {
		h := newHarness(t, &devicetest.Input{Blocks: blocks(1, 0.1)})
		require.NoError(t, h.s.Start())
		h.waitBlocks(t, 1)
		require.NoError(t, h.s.Stop())

		_, err := h.s.Save("../escape", "")
		assert.ErrorIs(t, err, model.ErrEmptyInput)
		assert.True(t, h.s.HasTake())
	})

	t.Run("while recording", func(t *testing.T) {
		h := newHarness(t, &devicetest.Input{})
		require.NoError(t, h.s.Start())

		_, err := h.s.Save("clap", "")
		assert.ErrorIs(t, err, model.ErrInvalidState)
		require.NoError(t, h.s.Stop())
	})

	t.Run("stop with nothing captured", func(t *testing.T) {
		h := newHarness(t, &devicetest.Input{})
		require.NoError(t, h.s.Start())
		require.NoError(t, h.s.Stop())
		assert.False(t, h.s.HasTake())

		_, err := h.s.Save("clap", "")
		assert.ErrorIs(t, err, model.ErrEmptyInput)
	})
}

func TestSession_SaveWriteFailureKeepsTake(t *testing.T) {
	h := newHarness(t, &devicetest.Input{Blocks: blocks(2, 0.1)})

	// Data dir path is occupied by a regular file
	require.NoError(t, os.WriteFile(h.dir, []byte("x"), 0o644))

	require.NoError(t, h.s.Start())
	h.waitBlocks(t, 2)
	require.NoError(t, h.s.Stop())

	_, err := h.s.Save("clap", "")
	assert.ErrorIs(t, err, model.ErrIO)
	assert.True(t, h.s.HasTake())
	assert.Equal(t, 0, h.cat.Count())
}

func TestSession_InvalidState(t *testing.T) {
	h := newHarness(t, &devicetest.Input{})

	assert.ErrorIs(t, h.s.Stop(), model.ErrInvalidState)

	require.NoError(t, h.s.Start())
	assert.ErrorIs(t, h.s.Start(), model.ErrInvalidState)
	assert.Equal(t, 1, h.in.Opens())
	require.NoError(t, h.s.Stop())
}

func TestSession_OpenFailure(t *testing.T) {
	h := newHarness(t, &devicetest.Input{OpenErr: errors.New("no microphone")})

	err := h.s.Start()
	assert.ErrorIs(t, err, model.ErrDevice)
	assert.False(t, h.s.Recording())
	assert.Equal(t, 0, h.sched.Active())
}

func TestSession_StartDiscardsTake(t *testing.T) {
	h := newHarness(t, &devicetest.Input{Blocks: blocks(1, 0.1)})

	require.NoError(t, h.s.Start())
	h.waitBlocks(t, 1)
	require.NoError(t, h.s.Stop())
	require.True(t, h.s.HasTake())

	h.in.Blocks = nil
	require.NoError(t, h.s.Start())
	assert.False(t, h.s.HasTake())
	require.NoError(t, h.s.Stop())
	assert.False(t, h.s.HasTake())
}

func TestSession_LevelAndTimer(t *testing.T) {
	h := newHarness(t, &devicetest.Input{Blocks: [][]float32{
		devicetest.Block(1024, 0.25),
	}})

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.s.now = func() time.Time { return clock }

	require.NoError(t, h.s.Start())
	h.waitBlocks(t, 1)

	clock = clock.Add(1500 * time.Millisecond)
	h.sched.Tick()

	assert.InDelta(t, 0.5, h.s.Level(), 1e-6)
	assert.Equal(t, 1500*time.Millisecond, h.s.Elapsed())

	h.rec.mu.Lock()
	require.Len(t, h.rec.levels, 1)
	assert.InDelta(t, 0.5, h.rec.levels[0], 1e-6)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, h.rec.timers)
	h.rec.mu.Unlock()

	clock = clock.Add(500 * time.Millisecond)
	require.NoError(t, h.s.Stop())
	assert.Equal(t, 0.0, h.s.Level())
	assert.Equal(t, 2*time.Second, h.s.Elapsed())

	h.rec.mu.Lock()
	assert.Equal(t, 0.0, h.rec.levels[len(h.rec.levels)-1])
	h.rec.mu.Unlock()
}

func TestSession_DeviceErrorMidCapture(t *testing.T) {
	h := newHarness(t, &devicetest.Input{
		Blocks: blocks(2, 0.1),
		Err:    errors.New("device unplugged"),
	})

	require.NoError(t, h.s.Start())

	require.Eventually(t, func() bool {
		h.sched.Tick()
		return !h.s.Recording()
	}, 2*time.Second, time.Millisecond)

	assert.Equal(t, 0, h.sched.Active())
	assert.True(t, h.in.LastStream().Closed())

	h.rec.mu.Lock()
	require.Len(t, h.rec.errs, 1)
	assert.ErrorIs(t, h.rec.errs[0], model.ErrDevice)
	assert.Contains(t, h.rec.errs[0].Error(), "device unplugged")
	h.rec.mu.Unlock()

	// Blocks captured before the failure are kept
	require.True(t, h.s.HasTake())
	assert.Equal(t, 2, h.s.Take().Blocks)

	assert.ErrorIs(t, h.s.Stop(), model.ErrInvalidState)
}

func TestSession_JoinTimeout(t *testing.T) {
	h := newHarness(t, &devicetest.Input{
		Blocks: blocks(1, 0.1),
		Delay:  300 * time.Millisecond,
	}, func(o *Options) {
		o.JoinTimeout = 10 * time.Millisecond
	})

	require.NoError(t, h.s.Start())
	require.Eventually(t, func() bool {
		return h.in.LastStream() != nil
	}, time.Second, time.Millisecond)

	err := h.s.Stop()
	assert.ErrorIs(t, err, model.ErrDevice)
	assert.False(t, h.s.Recording())
	assert.False(t, h.s.HasTake())
	assert.Equal(t, 0, h.sched.Active())

	// The abandoned worker still exits once the read returns
	stream := h.in.LastStream()
	require.Eventually(t, stream.Closed, 2*time.Second, 5*time.Millisecond)
}

func TestTake_Duration(t *testing.T) {
	take := &Take{Samples: make([]float32, 44100*2), SampleRate: 44100, Channels: 2}
	assert.Equal(t, time.Second, take.Duration())
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name  string
		block []float32
		scale float64
		want  float64
	}{
		{"empty", nil, 2, 0},
		{"silence", []float32{0, 0, 0}, 2, 0},
		{"quarter", []float32{0.25, -0.25}, 2, 0.5},
		{"clamped", []float32{0.9, -0.9}, 2, 1},
		{"unit scale", []float32{0.1, 0.3}, 1, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Level(tt.block, tt.scale), 1e-6)
		})
	}
}

func TestFloatsToPCM16(t *testing.T) {
	got := floatsToPCM16([]float32{0, 1, -1, 2, -2, 0.5})
	assert.Equal(t, []int{0, 32767, -32767, 32767, -32767, 16384}, got)
}
