// Package output provides formatters for cue listings.
package output

import (
	"io"
	"os"

	"github.com/jmylchreest/cuedeck/internal/model"
)

// Entry is one listed cue with the facts a listing shows about its file.
type Entry struct {
	Index      int   `json:"index" yaml:"index"`
	model.Cue  `yaml:",inline"`
	Size       int64 `json:"size" yaml:"size"`
	ModifiedAt int64 `json:"modified_at" yaml:"modified_at"`
}

// NewEntries stats each cue's file. Index is 1-based, matching the refs the
// CLI accepts.
func NewEntries(cues []model.Cue) []Entry {
	entries := make([]Entry, len(cues))
	for i, c := range cues {
		entries[i] = Entry{Index: i + 1, Cue: c}
		if info, err := os.Stat(c.FilePath); err == nil {
			entries[i].Size = info.Size()
			entries[i].ModifiedAt = info.ModTime().Unix()
		}
	}
	return entries
}

// Formatter formats cue listings for output.
type Formatter interface {
	// Format writes formatted entries to the writer.
	Format(w io.Writer, entries []Entry) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatDmenu FormatType = "dmenu"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatPlain FormatType = "plain"
)

// Formats lists the accepted format names.
var Formats = []FormatType{FormatPlain, FormatJSON, FormatYAML, FormatDmenu}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatDmenu:
		return NewDmenuFormatter(opts)
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template  string // Custom template for plain/dmenu format
	ShowIndex bool   // Show 1-based index prefix
	ShowSize  bool   // Show file size
	ShowTime  bool   // Show relative time the cue was added
	DescLen   int    // Maximum description length (0 = unlimited)
	Separator string // Field separator for dmenu format
}

// DefaultFormatterOptions returns sensible defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex: true,
		ShowSize:  true,
		ShowTime:  true,
		DescLen:   60,
		Separator: " | ",
	}
}
