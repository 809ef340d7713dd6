package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// PlainFormatter formats cues as human-readable text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes entries as plain text.
func (f *PlainFormatter) Format(w io.Writer, entries []Entry) error {
	for i := range entries {
		if err := f.formatEntry(w, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatEntry(w io.Writer, e *Entry) error {
	if f.template != nil {
		if err := f.template.Execute(w, e); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", e.Index)
	}
	sb.WriteString(e.Name)
	if f.opts.ShowSize {
		fmt.Fprintf(&sb, " (%s)", humanize.Bytes(uint64(e.Size)))
	}
	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " added %s", relativeTime(e.AddedAt))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "    %s\n", e.FilePath)

	if desc := description(e, f.opts.DescLen); desc != "" {
		fmt.Fprintf(&sb, "    %s\n", desc)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// description returns the one-line description, truncated when maxLen > 0.
func description(e *Entry, maxLen int) string {
	if maxLen > 0 {
		return e.DescriptionTruncated(maxLen)
	}
	return strings.Join(strings.Fields(e.Description), " ")
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"bytes":   func(n int64) string { return humanize.Bytes(uint64(n)) },
		"reltime": relativeTime,
		"upper":   strings.ToUpper,
	}
}

// relativeTime returns a human-readable relative time string.
func relativeTime(timestamp int64) string {
	if timestamp == 0 {
		return "unknown"
	}
	return humanize.Time(time.Unix(timestamp, 0))
}
