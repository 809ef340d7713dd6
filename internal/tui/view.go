package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/cuedeck/internal/playback"
)

var (
	tabStyle       = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("8"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	recStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.mode == ModeHelp {
		return m.viewHelp()
	}

	var body string
	switch m.tab {
	case TabCues:
		body = m.viewCues()
	case TabRecorder:
		body = m.viewRecorder()
	case TabVideo:
		body = m.viewVideo()
	}

	return m.viewTabs() + "\n" + body + "\n" + m.viewFooter()
}

func (m Model) viewTabs() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if Tab(i) == m.tab {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	if np := m.nowPlaying(); np != "" {
		bar += "  " + np
	}
	if m.recorder.Recording {
		bar += "  " + recStyle.Render("● REC "+formatElapsed(m.recorder.Elapsed))
	}
	return bar
}

func (m Model) nowPlaying() string {
	if m.active == nil {
		return ""
	}
	switch m.session.State {
	case playback.Playing:
		return keyStyle.Render("▶ " + m.active.Name)
	case playback.Paused:
		return labelStyle.Render(fmt.Sprintf("⏸ %s at %s", m.active.Name, formatElapsed(m.session.PausedAt)))
	}
	return ""
}

func (m Model) viewCues() string {
	switch m.mode {
	case ModeSearch:
		countStr := fmt.Sprintf("(%d matches)", len(m.list.Items()))
		return "Search: " + m.searchInput.View() + " " + labelStyle.Render(countStr) + "\n" + m.list.View()
	case ModeForm:
		return m.viewForm("Import a file into " + m.backend.DataDir())
	case ModeConfirm:
		if m.confirmOn != nil {
			file := m.confirmOn.FileName()
			if size := sizeOf(m.confirmOn.FilePath); size != "" {
				file += ", " + size
			}
			prompt := fmt.Sprintf("Delete %q (%s)? (y/n)", m.confirmOn.Name, file)
			return recStyle.Render(prompt) + "\n\n" + m.list.View()
		}
	}

	if len(m.cues) == 0 {
		return labelStyle.Render(fmt.Sprintf(
			"\n  No cues in %s.\n  Record one on the Recorder panel or press i to import a file.\n",
			m.backend.DataDir()))
	}
	return m.list.View()
}

func (m Model) viewRecorder() string {
	if m.mode == ModeForm {
		return m.viewForm("Save the take as a cue")
	}

	var sb strings.Builder
	sb.WriteString("\n")

	state := "Idle"
	switch {
	case m.recorder.Recording:
		state = recStyle.Render("● Recording")
	case m.recorder.HasTake:
		state = "Take ready to save"
	}
	sb.WriteString(labelStyle.Render("  State: ") + state + "\n\n")
	sb.WriteString(labelStyle.Render("  Time:  ") + formatElapsed(m.recorder.Elapsed) + "\n\n")
	sb.WriteString(labelStyle.Render("  Level: ") + m.meter.ViewAs(m.recorder.Level) + "\n\n")

	switch {
	case m.recorder.Recording:
		sb.WriteString(labelStyle.Render("  Press R or space to stop.") + "\n")
	case m.recorder.HasTake:
		sb.WriteString(labelStyle.Render("  Press w to save, R to record again (discards the take).") + "\n")
	default:
		sb.WriteString(labelStyle.Render("  Press R or space to start recording.") + "\n")
	}
	return sb.String()
}

func (m Model) viewVideo() string {
	return labelStyle.Render("\n  Video control is not available yet.\n")
}

func (m Model) viewForm(title string) string {
	var sb strings.Builder
	sb.WriteString("\n  " + activeTabStyle.UnsetPadding().Render(title) + "\n\n")
	for _, f := range m.fields {
		sb.WriteString("  " + f.View() + "\n")
	}
	sb.WriteString("\n" + labelStyle.Render("  enter next/submit · tab switch field · esc cancel") + "\n")
	return sb.String()
}

func (m Model) viewFooter() string {
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		return statusStyle.Render(m.statusMsg)
	}
	if !m.cfg.TUI.ShowHelp {
		return ""
	}

	switch {
	case m.mode == ModeSearch:
		return m.buildKeybindBar(m.width, "search")
	case m.mode == ModeForm || m.mode == ModeConfirm:
		return ""
	case m.tab == TabRecorder:
		return m.buildKeybindBar(m.width, "recorder")
	case m.tab == TabVideo:
		return m.buildKeybindBar(m.width, "video")
	default:
		return m.buildKeybindBar(m.width, "cues")
	}
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"

	s += labelStyle.Render("Panels") + "\n"
	s += keyStyle.Render("  tab/shift+tab") + "  Next/previous panel\n"
	s += keyStyle.Render("  1/2/3") + "          Cues, Recorder, Video\n"
	s += "\n"

	s += labelStyle.Render("Cues") + "\n"
	s += keyStyle.Render("  j/k, ↑/↓") + "       Move up/down\n"
	s += keyStyle.Render("  enter/space") + "    Play, pause or resume\n"
	s += keyStyle.Render("  s") + "              Stop\n"
	s += keyStyle.Render("  D") + "              Delete cue and file\n"
	s += keyStyle.Render("  i") + "              Import a file\n"
	s += keyStyle.Render("  c") + "              Copy file path\n"
	s += keyStyle.Render("  /") + "              Search\n"
	s += keyStyle.Render("  r") + "              Stop and rescan the data directory\n"
	s += "\n"

	s += labelStyle.Render("Recorder") + "\n"
	s += keyStyle.Render("  R/space") + "        Start/stop recording\n"
	s += keyStyle.Render("  w") + "              Save the take\n"
	s += "\n"

	s += labelStyle.Render("General") + "\n"
	s += keyStyle.Render("  ?") + "              Toggle this help\n"
	s += keyStyle.Render("  esc") + "            Back / Cancel\n"
	s += keyStyle.Render("  q") + "              Quit\n"

	s += "\n" + labelStyle.Render("Press ? or esc to return")

	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key      string
	desc     string
	priority int // lower = more important (shown first)
}

// buildKeybindBar builds a keybind bar that fits within the given width.
func (m Model) buildKeybindBar(width int, mode string) string {
	var binds []keybind

	switch mode {
	case "cues":
		binds = []keybind{
			{"q", "quit", 1},
			{"enter", "play/pause", 2},
			{"s", "stop", 3},
			{"?", "help", 4},
			{"tab", "panel", 5},
			{"/", "search", 6},
			{"i", "import", 7},
			{"D", "delete", 8},
			{"r", "refresh", 9},
			{"c", "copy path", 10},
		}
	case "recorder":
		binds = []keybind{
			{"q", "quit", 1},
			{"R", "record/stop", 2},
			{"w", "save", 3},
			{"tab", "panel", 4},
			{"?", "help", 5},
		}
	case "video":
		binds = []keybind{
			{"q", "quit", 1},
			{"tab", "panel", 2},
			{"?", "help", 3},
		}
	case "search":
		binds = []keybind{
			{"enter", "keep filter", 1},
			{"esc", "clear", 2},
			{"↑/↓", "navigate", 3},
		}
	}

	const separator = "  "
	result := ""
	plainLen := 0
	for _, b := range binds {
		plainItem := b.key + " " + b.desc
		testLen := plainLen + len(plainItem)
		if result != "" {
			testLen += len(separator)
		}
		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		plainLen = testLen
	}

	return labelStyle.Render(result)
}

// formatElapsed renders a duration as m:ss.t.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	tenths := int64(d.Round(100*time.Millisecond) / (100 * time.Millisecond))
	return fmt.Sprintf("%d:%02d.%d", tenths/600, (tenths/10)%60, tenths%10)
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// expandHome expands a leading ~ in a typed path.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// sizeOf returns the human-readable size of path, or "".
func sizeOf(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return humanize.Bytes(uint64(info.Size()))
}
