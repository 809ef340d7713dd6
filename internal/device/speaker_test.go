package device

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV writes a short mono 16-bit file and returns its path.
func writeTestWAV(t *testing.T, dir string, frames int) string {
	t.Helper()

	path := filepath.Join(dir, "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, frames)
	for i := range data {
		data[i] = int(8000 * math.Sin(float64(i)/10))
	}

	enc := wav.NewEncoder(f, 22050, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:   data,
		Format: &audio.Format{SampleRate: 22050, NumChannels: 1},
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestSpeaker_LoadWithoutPlay(t *testing.T) {
	path := writeTestWAV(t, t.TempDir(), 2205)

	s := NewSpeaker(SpeakerOptions{}, nil)
	require.NoError(t, s.Load(path))

	// Decoded but not started: not busy, and not yet touching the speaker
	assert.False(t, s.Busy())
	assert.Equal(t, path, s.path)
	assert.Equal(t, 22050, int(s.format.SampleRate))

	require.NoError(t, s.Stop())
	assert.Nil(t, s.streamer)
	assert.Equal(t, "", s.path)

	// The handle is released: the file can be removed
	require.NoError(t, os.Remove(path))
}

func TestSpeaker_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	s := NewSpeaker(SpeakerOptions{}, nil)

	t.Run("missing file", func(t *testing.T) {
		err := s.Load(filepath.Join(dir, "nope.wav"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))
		err := s.Load(path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("corrupt wav", func(t *testing.T) {
		path := filepath.Join(dir, "broken.wav")
		require.NoError(t, os.WriteFile(path, []byte("not a riff file at all"), 0644))
		err := s.Load(path)
		assert.Error(t, err)
		assert.Nil(t, s.streamer)
	})
}

func TestSpeaker_OperationsWithoutLoad(t *testing.T) {
	s := NewSpeaker(SpeakerOptions{}, nil)

	assert.ErrorIs(t, s.Play(), ErrNotLoaded)
	_, err := s.Pause()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, s.Resume(), ErrNotLoaded)
	assert.False(t, s.Busy())
	assert.NoError(t, s.Stop())
}

func TestNewSpeaker_ClampsOptions(t *testing.T) {
	s := NewSpeaker(SpeakerOptions{Volume: 3}, nil)
	assert.Equal(t, 1.0, s.opts.Volume)
	assert.Equal(t, 44100, s.opts.SampleRate)
	assert.Greater(t, s.opts.Buffer, time.Duration(0))

	s = NewSpeaker(SpeakerOptions{Volume: -1}, nil)
	assert.Equal(t, 0.0, s.opts.Volume)
}

func TestVolumeToExponent(t *testing.T) {
	assert.InDelta(t, 0.0, volumeToExponent(1.0), 1e-9)
	assert.InDelta(t, -1.0, volumeToExponent(0.5), 1e-9)
	assert.InDelta(t, -2.0, volumeToExponent(0.25), 1e-9)
	assert.Equal(t, -10.0, volumeToExponent(0))
}

// fakeMixer follows beep's rule that the speaker initialises only once.
type fakeMixer struct {
	mu        sync.Mutex
	inits     int
	suspends  int
	resumes   int
	clears    int
	played    int
	suspended bool
}

func (m *fakeMixer) Init(beep.SampleRate, int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inits > 0 {
		return errors.New("speaker cannot be initialized more than once")
	}
	m.inits++
	return nil
}

func (m *fakeMixer) Play(...beep.Streamer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played++
}

func (m *fakeMixer) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
}

func (m *fakeMixer) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspends++
	m.suspended = true
	return nil
}

func (m *fakeMixer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	m.suspended = false
	return nil
}

func (m *fakeMixer) Lock()   {}
func (m *fakeMixer) Unlock() {}

func useFakeMixer(t *testing.T) *fakeMixer {
	t.Helper()

	outputMu.Lock()
	prev, prevReady, prevRate := output, outputReady, outputRate
	m := &fakeMixer{}
	output, outputReady, outputRate = m, false, 0
	outputMu.Unlock()

	t.Cleanup(func() {
		outputMu.Lock()
		output, outputReady, outputRate = prev, prevReady, prevRate
		outputMu.Unlock()
	})
	return m
}

func TestSpeaker_PlayAfterRecycle(t *testing.T) {
	m := useFakeMixer(t)
	path := writeTestWAV(t, t.TempDir(), 2205)
	s := NewSpeaker(SpeakerOptions{ReleaseWait: time.Millisecond}, nil)

	require.NoError(t, s.Load(path))
	require.NoError(t, s.Play())
	assert.True(t, s.Busy())

	require.NoError(t, s.Stop())
	require.NoError(t, s.Recycle())
	assert.False(t, m.suspended)

	require.NoError(t, s.Load(path))
	require.NoError(t, s.Play())
	require.NoError(t, s.Recycle())

	assert.Equal(t, 1, m.inits)
	assert.Equal(t, 2, m.played)
	assert.Equal(t, 2, m.suspends)
	assert.Equal(t, 2, m.resumes)

	// The decoder and file are closed by the recycle
	require.NoError(t, os.Remove(path))
}

func TestSpeaker_ResampleToSharedRate(t *testing.T) {
	useFakeMixer(t)
	path := writeTestWAV(t, t.TempDir(), 2205)

	first := NewSpeaker(SpeakerOptions{SampleRate: 48000}, nil)
	require.NoError(t, first.Load(path))
	require.NoError(t, first.Play())
	require.NoError(t, first.Close())

	// A second speaker reuses the running output and its rate
	second := NewSpeaker(SpeakerOptions{SampleRate: 22050}, nil)
	require.NoError(t, second.Load(path))
	require.NoError(t, second.Play())
	assert.Equal(t, beep.SampleRate(48000), second.rate)
	require.NoError(t, second.Close())
}

func TestSpeaker_RecycleBeforeFirstPlay(t *testing.T) {
	m := useFakeMixer(t)
	s := NewSpeaker(SpeakerOptions{ReleaseWait: time.Millisecond}, nil)

	require.NoError(t, s.Recycle())
	assert.Zero(t, m.inits)
	assert.Zero(t, m.suspends)
}
