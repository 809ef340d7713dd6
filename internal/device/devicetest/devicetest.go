// Package devicetest provides scriptable Output and Input fakes.
package devicetest

import (
	"errors"
	"sync"
	"time"

	"github.com/jmylchreest/cuedeck/internal/device"
)

// Output is a fake device.Output. A loaded file stays busy until Finish is
// called, which simulates the stream reaching its end.
type Output struct {
	mu sync.Mutex

	loaded   string
	started  bool
	paused   bool
	finished bool
	position time.Duration

	loads    []string
	stops    int
	recycles int

	// LoadErr, PlayErr and RecycleErr are returned by the matching call when set.
	LoadErr    error
	PlayErr    error
	RecycleErr error
	// OnRecycle runs inside Recycle, after the unload.
	OnRecycle func()
}

var _ device.Output = (*Output)(nil)

// NewOutput creates a fake output.
func NewOutput() *Output {
	return &Output{}
}

// Load implements device.Output.
func (o *Output) Load(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.loads = append(o.loads, path)
	if o.LoadErr != nil {
		return o.LoadErr
	}
	o.loaded = path
	o.started = false
	o.paused = false
	o.finished = false
	o.position = 0
	return nil
}

// Play implements device.Output.
func (o *Output) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.loaded == "" {
		return device.ErrNotLoaded
	}
	if o.PlayErr != nil {
		return o.PlayErr
	}
	o.started = true
	o.position = 0
	return nil
}

// Pause implements device.Output.
func (o *Output) Pause() (time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return 0, device.ErrNotLoaded
	}
	o.paused = true
	return o.position, nil
}

// Resume implements device.Output.
func (o *Output) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return device.ErrNotLoaded
	}
	o.paused = false
	return nil
}

// Busy implements device.Output.
func (o *Output) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started && !o.finished
}

// Stop implements device.Output.
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.stops++
	o.unloadLocked()
	return nil
}

// Recycle implements device.Output.
func (o *Output) Recycle() error {
	o.mu.Lock()
	o.recycles++
	o.unloadLocked()
	hook := o.OnRecycle
	err := o.RecycleErr
	o.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

// Close implements device.Output.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unloadLocked()
	return nil
}

func (o *Output) unloadLocked() {
	o.loaded = ""
	o.started = false
	o.paused = false
	o.finished = false
	o.position = 0
}

// Finish makes the loaded file report not busy.
func (o *Output) Finish() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = true
}

// Advance moves the playback position forward.
func (o *Output) Advance(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started && !o.paused {
		o.position += d
	}
}

// Loaded returns the loaded path, or "".
func (o *Output) Loaded() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loaded
}

// Paused reports whether the fake is paused.
func (o *Output) Paused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// Loads returns every path passed to Load.
func (o *Output) Loads() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.loads...)
}

// Stops returns how many times Stop was called.
func (o *Output) Stops() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stops
}

// Recycles returns how many times Recycle was called.
func (o *Output) Recycles() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recycles
}

// ErrClosed is returned by reads on a closed fake stream.
var ErrClosed = errors.New("stream closed")

// Input is a fake device.Input whose streams replay scripted blocks.
// Once the script is exhausted a stream returns empty reads (or Err if set)
// until it is closed.
type Input struct {
	mu sync.Mutex

	// Blocks are delivered in order, one per Read.
	Blocks [][]float32
	// Err, if set, is returned once the script is exhausted.
	Err error
	// OpenErr, if set, is returned by Open.
	OpenErr error
	// Delay is slept before each scripted block.
	Delay time.Duration

	opens   int
	streams []*Stream
	params  [3]int
}

var _ device.Input = (*Input)(nil)

// Open implements device.Input.
func (in *Input) Open(sampleRate, channels, blockSize int) (device.Stream, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.opens++
	in.params = [3]int{sampleRate, channels, blockSize}
	if in.OpenErr != nil {
		return nil, in.OpenErr
	}

	s := &Stream{blocks: append([][]float32(nil), in.Blocks...), err: in.Err, delay: in.Delay}
	in.streams = append(in.streams, s)
	return s, nil
}

// Opens returns how many times Open was called.
func (in *Input) Opens() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.opens
}

// Params returns the sample rate, channels and block size of the last Open.
func (in *Input) Params() (sampleRate, channels, blockSize int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.params[0], in.params[1], in.params[2]
}

// LastStream returns the most recently opened stream.
func (in *Input) LastStream() *Stream {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.streams) == 0 {
		return nil
	}
	return in.streams[len(in.streams)-1]
}

// Stream is a fake device.Stream.
type Stream struct {
	mu     sync.Mutex
	blocks [][]float32
	err    error
	delay  time.Duration
	reads  int
	closed bool
}

// Read implements device.Stream.
func (s *Stream) Read() ([]float32, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if len(s.blocks) > 0 {
		block := s.blocks[0]
		s.blocks = s.blocks[1:]
		s.reads++
		delay := s.delay
		s.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		return append([]float32(nil), block...), nil
	}
	err := s.err
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	time.Sleep(time.Millisecond)
	return nil, nil
}

// Close implements device.Stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reads returns how many scripted blocks were delivered.
func (s *Stream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Block returns a block of n samples all set to v.
func Block(n int, v float32) []float32 {
	b := make([]float32, n)
	for i := range b {
		b[i] = v
	}
	return b
}
