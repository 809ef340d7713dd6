package recording

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// bitDepth of every file cuedeck writes.
const bitDepth = 16

// writeWAV writes float samples in [-1, 1] to path as 16-bit PCM.
func writeWAV(path string, samples []float32, sampleRate, channels int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)

	buf := &audio.IntBuffer{
		Data:           floatsToPCM16(samples),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write to WAV encoder: %w", err)
	}

	// Close finalises the RIFF header sizes.
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalise WAV file: %w", err)
	}
	return nil
}

func floatsToPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		out[i] = int(math.Round(v * math.MaxInt16))
	}
	return out
}
