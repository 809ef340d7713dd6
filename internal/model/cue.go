// Package model defines the core data structures for cuedeck.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultExtensions are the audio file extensions recognised by a directory scan.
var DefaultExtensions = []string{".wav", ".mp3"}

// Cue is a named, path-addressed audio clip tracked by the catalog.
// FilePath is the uniqueness key; ID only exists so the console has a
// short, stable handle to pass around.
type Cue struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	FilePath    string `json:"file_path" yaml:"file_path"`
	Description string `json:"description" yaml:"description"`
	AddedAt     int64  `json:"added_at" yaml:"added_at"`
}

// Validation errors.
var (
	ErrEmptyCueID   = errors.New("cue id cannot be empty")
	ErrEmptyCueName = errors.New("cue name cannot be empty")
	ErrEmptyCuePath = errors.New("cue file_path cannot be empty")
)

// NewCue creates a new Cue with a generated ULID.
func NewCue(name, filePath, description string) (*Cue, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	return &Cue{
		ID:          id.String(),
		Name:        name,
		FilePath:    filePath,
		Description: description,
		AddedAt:     time.Now().Unix(),
	}, nil
}

// CueFromFile creates a Cue for an audio file found on disk.
// The name is the base filename without its extension.
func CueFromFile(path string) (*Cue, error) {
	return NewCue(NameFromPath(path), path, "")
}

// Validate checks that the cue has all required fields.
func (c *Cue) Validate() error {
	if c.ID == "" {
		return ErrEmptyCueID
	}
	if c.Name == "" {
		return ErrEmptyCueName
	}
	if c.FilePath == "" {
		return ErrEmptyCuePath
	}
	return nil
}

// Ext returns the lower-cased file extension of the cue's file, including the dot.
func (c *Cue) Ext() string {
	return strings.ToLower(filepath.Ext(c.FilePath))
}

// FileName returns the base name of the cue's file.
func (c *Cue) FileName() string {
	return filepath.Base(c.FilePath)
}

// AddedAtTime returns the time the cue entered the catalog.
func (c *Cue) AddedAtTime() time.Time {
	return time.Unix(c.AddedAt, 0)
}

// DescriptionTruncated returns the description collapsed to one line and
// truncated to maxLen characters.
func (c *Cue) DescriptionTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	desc := []rune(strings.Join(strings.Fields(c.Description), " "))
	if len(desc) <= maxLen {
		return string(desc)
	}
	if maxLen <= 3 {
		return string(desc[:maxLen])
	}
	return string(desc[:maxLen-3]) + "..."
}

// NameFromPath derives a cue name from a file path.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsAudioFile reports whether path has one of the given extensions.
// Matching is case-insensitive. A nil list means DefaultExtensions.
func IsAudioFile(path string, extensions []string) bool {
	if extensions == nil {
		extensions = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
