package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioInput opens capture streams on the default input device.
// PortAudio is initialised when the first stream opens and terminated when
// the last one closes.
type PortAudioInput struct {
	mu       sync.Mutex
	logger   *slog.Logger
	refCount int
}

// NewPortAudioInput creates a new PortAudio input binding.
func NewPortAudioInput(logger *slog.Logger) *PortAudioInput {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudioInput{logger: logger}
}

// Open implements Input.
func (in *PortAudioInput) Open(sampleRate, channels, blockSize int) (Stream, error) {
	if err := in.acquire(); err != nil {
		return nil, err
	}

	buf := make([]float32, blockSize*channels)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(sampleRate), blockSize, buf)
	if err != nil {
		in.release()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		in.release()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	in.logger.Debug("input stream opened", "sample_rate", sampleRate, "channels", channels, "block_size", blockSize)
	return &portAudioStream{input: in, stream: stream, buf: buf}, nil
}

// acquire initialises PortAudio on first use.
func (in *PortAudioInput) acquire() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.refCount == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
	}
	in.refCount++
	return nil
}

// release terminates PortAudio when the last stream is gone.
func (in *PortAudioInput) release() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.refCount > 0 {
		in.refCount--
	}
	if in.refCount == 0 {
		if err := portaudio.Terminate(); err != nil {
			in.logger.Warn("failed to terminate PortAudio", "error", err)
		}
	}
}

type portAudioStream struct {
	input  *PortAudioInput
	stream *portaudio.Stream
	buf    []float32
	once   sync.Once
}

// Read implements Stream.
func (s *portAudioStream) Read() ([]float32, error) {
	// An overflow only means samples were dropped; the buffer is still valid
	if err := s.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("failed to read input stream: %w", err)
	}
	block := make([]float32, len(s.buf))
	copy(block, s.buf)
	return block, nil
}

// Close implements Stream.
func (s *portAudioStream) Close() error {
	var err error
	s.once.Do(func() {
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop input stream: %w", stopErr)
		}
		if closeErr := s.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close input stream: %w", closeErr)
		}
		s.input.release()
	})
	return err
}
