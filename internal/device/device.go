// Package device binds cuedeck to the host audio subsystem.
//
// Output owns the single playback channel and Input opens the single capture
// stream. Both are shared resources: the playback manager and the recording
// session are their only users.
package device

import (
	"errors"
	"time"
)

// ErrNotLoaded is returned by Output operations that need a loaded file.
var ErrNotLoaded = errors.New("no file loaded")

// ErrUnsupportedFormat is returned by Load for files no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Output is the playback side of the device binding. It holds at most one
// loaded file at a time.
type Output interface {
	// Load opens and decodes path, replacing anything already loaded.
	Load(path string) error
	// Play starts the loaded file from offset 0.
	Play() error
	// Pause pauses playback and returns the offset it stopped at.
	Pause() (time.Duration, error)
	// Resume continues a paused file.
	Resume() error
	// Busy reports whether the loaded file is still streaming.
	Busy() bool
	// Stop stops playback and unloads the file, closing it.
	Stop() error
	// Recycle tears down and reinitialises the output subsystem. On some
	// platforms the subsystem keeps file handles open after Stop; a
	// recycle is the only reliable way to release them. Recycle blocks for
	// the configured release wait before reinitialising.
	Recycle() error
	// Close shuts the subsystem down.
	Close() error
}

// Input is the capture side of the device binding.
type Input interface {
	// Open opens a capture stream delivering blocks of blockSize frames.
	Open(sampleRate, channels, blockSize int) (Stream, error)
}

// Stream is an open capture stream.
type Stream interface {
	// Read blocks until the next block is available and returns a copy of it.
	// Samples are interleaved float32 in [-1, 1].
	Read() ([]float32, error)
	// Close stops and releases the stream.
	Close() error
}
