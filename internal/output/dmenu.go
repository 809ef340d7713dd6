package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
)

// DmenuFormatter formats cues one per line for dmenu/rofi/fuzzel. The first
// field is the index so a picked line can be passed back to `cuedeck play`.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	f := &DmenuFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("dmenu").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes entries in dmenu format.
func (f *DmenuFormatter) Format(w io.Writer, entries []Entry) error {
	for i := range entries {
		if _, err := fmt.Fprintln(w, f.formatLine(&entries[i])); err != nil {
			return err
		}
	}
	return nil
}

func (f *DmenuFormatter) formatLine(e *Entry) string {
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, e); err == nil {
			return buf.String()
		}
	}

	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	var parts []string
	if f.opts.ShowIndex {
		parts = append(parts, strconv.Itoa(e.Index))
	}
	parts = append(parts, e.Name)
	if f.opts.ShowTime {
		parts = append(parts, relativeTime(e.AddedAt))
	}
	if desc := description(e, f.opts.DescLen); desc != "" {
		parts = append(parts, desc)
	}

	return strings.Join(parts, sep)
}

// ParseDmenuLine extracts the cue ref from a line produced by DmenuFormatter.
func ParseDmenuLine(line, sep string) string {
	if sep == "" {
		sep = " | "
	}
	line = strings.TrimSpace(line)
	if i := strings.Index(line, sep); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}
