// Package tui provides the BubbleTea-based terminal console.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/cuedeck/internal/catalog"
	"github.com/jmylchreest/cuedeck/internal/config"
	"github.com/jmylchreest/cuedeck/internal/console"
	"github.com/jmylchreest/cuedeck/internal/model"
	"github.com/jmylchreest/cuedeck/internal/playback"
)

// Backend is the part of the console the TUI drives.
type Backend interface {
	Cues() []model.Cue
	Session() (playback.Session, *model.Cue)
	Recorder() console.RecorderState
	Play(ref string) error
	Pause(ref string) error
	Resume(ref string) error
	Stop(ref string) error
	DeleteCue(ref string) error
	Refresh() error
	StartRecording() error
	StopRecording() error
	SaveRecording(name, description string) (model.Cue, error)
	ImportFile(src, name, description string) (model.Cue, error)
	DataDir() string
}

// Tab is one of the console panels.
type Tab int

const (
	TabCues Tab = iota
	TabRecorder
	TabVideo
)

var tabNames = []string{"Cues", "Recorder", "Video"}

// Mode represents the current UI mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeForm
	ModeConfirm
	ModeHelp
)

// formKind identifies what a form submits to.
type formKind int

const (
	formSave formKind = iota
	formImport
)

// Model is the main TUI model.
type Model struct {
	cfg     *config.Config
	backend Backend

	tab  Tab
	mode Mode

	// Components
	list        list.Model
	searchInput textinput.Model
	meter       progress.Model
	help        help.Model

	// Form state
	form      formKind
	fields    []textinput.Model
	focus     int
	confirmOn *model.Cue

	// State
	cues        []model.Cue
	session     playback.Session
	active      *model.Cue
	recorder    console.RecorderState
	searchQuery string
	width       int
	height      int
	ready       bool

	keys KeyMap

	statusMsg string
	statusErr bool
}

// cueItem wraps a cue for the list component.
type cueItem struct {
	cue   model.Cue
	state playback.State
	index int
}

func (i cueItem) Title() string {
	switch i.state {
	case playback.Playing:
		return "▶ " + i.cue.Name
	case playback.Paused:
		return "⏸ " + i.cue.Name
	default:
		return i.cue.Name
	}
}

func (i cueItem) Description() string {
	desc := i.cue.DescriptionTruncated(50)
	if desc == "" {
		return fmt.Sprintf("%d · %s", i.index+1, i.cue.FileName())
	}
	return fmt.Sprintf("%d · %s · %s", i.index+1, i.cue.FileName(), desc)
}

func (i cueItem) FilterValue() string {
	return i.cue.Name + " " + i.cue.Description
}

// cueDelegate highlights the active cue.
type cueDelegate struct {
	list.DefaultDelegate
}

func newCueDelegate() cueDelegate {
	return cueDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// Render renders a list item, colouring the active cue.
func (d cueDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ci, ok := item.(cueItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	isSelected := index == m.Index()
	itemWidth := m.Width() - d.Styles.NormalTitle.GetHorizontalPadding()

	titleStyle, descStyle := d.Styles.NormalTitle, d.Styles.NormalDesc
	if isSelected {
		titleStyle, descStyle = d.Styles.SelectedTitle, d.Styles.SelectedDesc
	}
	if ci.state != playback.Idle {
		titleStyle = titleStyle.Foreground(lipgloss.Color("10"))
	}

	title := truncate(ci.Title(), itemWidth)
	desc := truncate(ci.Description(), itemWidth)

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// New creates a new TUI model.
func New(cfg *config.Config, backend Backend) Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	l := list.New(nil, newCueDelegate(), 0, 0)
	l.Title = "Cues"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	searchInput := textinput.New()
	searchInput.Placeholder = "Search..."
	searchInput.CharLimit = 100

	meter := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())

	return Model{
		cfg:         cfg,
		backend:     backend,
		tab:         TabCues,
		mode:        ModeNormal,
		list:        l,
		searchInput: searchInput,
		meter:       meter,
		help:        help.New(),
		keys:        DefaultKeyMap(),
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return m.loadSnapshot
}

// snapshot is everything the views need from the backend.
type snapshot struct {
	cues     []model.Cue
	session  playback.Session
	active   *model.Cue
	recorder console.RecorderState
}

type snapshotMsg snapshot

// opResultMsg reports a finished backend operation with a fresh snapshot.
type opResultMsg struct {
	status string
	err    error
	snap   snapshot
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

func (m Model) takeSnapshot() snapshot {
	session, active := m.backend.Session()
	return snapshot{
		cues:     m.backend.Cues(),
		session:  session,
		active:   active,
		recorder: m.backend.Recorder(),
	}
}

func (m Model) loadSnapshot() tea.Msg {
	return snapshotMsg(m.takeSnapshot())
}

// run performs op off the update goroutine and reports the result.
func (m Model) run(status string, op func() error) tea.Cmd {
	return func() tea.Msg {
		err := op()
		return opResultMsg{status: status, err: err, snap: m.takeSnapshot()}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.list.SetSize(msg.Width, msg.Height-4)
		m.meter.Width = max(10, msg.Width-20)
		return m, nil

	case snapshotMsg:
		m.apply(snapshot(msg))
		return m, nil

	case opResultMsg:
		m.apply(msg.snap)
		if msg.err != nil {
			return m, setStatus(msg.err.Error(), true)
		}
		if msg.status != "" {
			return m, setStatus(msg.status, false)
		}
		return m, nil

	case playbackEndedMsg:
		return m, tea.Batch(m.loadSnapshot, setStatus("Finished "+msg.cue.Name, false))

	case catalogChangedMsg:
		return m, m.loadSnapshot

	case levelMsg:
		m.recorder.Level = float64(msg)
		return m, nil

	case timerMsg:
		m.recorder.Elapsed = time.Duration(msg)
		return m, nil

	case errorMsg:
		return m, tea.Batch(m.loadSnapshot, setStatus(string(msg), true))

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, setStatus("Copy failed: "+msg.err.Error(), true)
		}
		return m, setStatus("Copied to clipboard", false)
	}

	var cmd tea.Cmd
	switch m.mode {
	case ModeSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
	case ModeForm:
		m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	default:
		if m.tab == TabCues {
			m.list, cmd = m.list.Update(msg)
		}
	}
	return m, cmd
}

func setStatus(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

func (m *Model) apply(s snapshot) {
	m.cues = s.cues
	m.session = s.session
	m.active = s.active
	m.recorder = s.recorder
	m.list.SetItems(m.buildListItems())
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeForm:
		return m.handleFormKey(msg)
	case ModeConfirm:
		return m.handleConfirmKey(msg)
	}

	// Global keys
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		if m.mode == ModeHelp {
			m.mode = ModeNormal
		} else {
			m.mode = ModeHelp
		}
		return m, nil
	}

	if m.mode == ModeHelp {
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeNormal
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.NextTab):
		m.tab = (m.tab + 1) % Tab(len(tabNames))
		return m, nil
	case key.Matches(msg, m.keys.PrevTab):
		m.tab = (m.tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames))
		return m, nil
	case key.Matches(msg, m.keys.CuesTab):
		m.tab = TabCues
		return m, nil
	case key.Matches(msg, m.keys.RecTab):
		m.tab = TabRecorder
		return m, nil
	case key.Matches(msg, m.keys.VideoTab):
		m.tab = TabVideo
		return m, nil
	}

	switch m.tab {
	case TabCues:
		return m.handleCuesKey(msg)
	case TabRecorder:
		return m.handleRecorderKey(msg)
	}
	return m, nil
}

// handleCuesKey handles keys on the cue list.
func (m Model) handleCuesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Play):
		cue, ok := m.selectedCue()
		if !ok {
			return m, nil
		}
		ref := cue.FilePath
		if m.active != nil && m.active.FilePath == ref {
			switch m.session.State {
			case playback.Playing:
				return m, m.run("Paused "+cue.Name, func() error { return m.backend.Pause(ref) })
			case playback.Paused:
				return m, m.run("Resumed "+cue.Name, func() error { return m.backend.Resume(ref) })
			}
		}
		return m, m.run("Playing "+cue.Name, func() error { return m.backend.Play(ref) })

	case key.Matches(msg, m.keys.Stop):
		if m.active == nil {
			return m, nil
		}
		return m, m.run("Stopped", func() error { return m.backend.Stop("") })

	case key.Matches(msg, m.keys.Delete):
		if cue, ok := m.selectedCue(); ok {
			m.confirmOn = &cue
			m.mode = ModeConfirm
		}
		return m, nil

	case key.Matches(msg, m.keys.Import):
		m.openForm(formImport)
		return m, textinput.Blink

	case key.Matches(msg, m.keys.CopyPath):
		if cue, ok := m.selectedCue(); ok {
			return m, m.copyToClipboard(cue.FilePath)
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		m.mode = ModeSearch
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("Refreshed", m.backend.Refresh)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleRecorderKey handles keys on the recorder panel.
func (m Model) handleRecorderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Record):
		if m.recorder.Recording {
			return m, m.run("Recording stopped", m.backend.StopRecording)
		}
		return m, m.run("Recording...", m.backend.StartRecording)

	case key.Matches(msg, m.keys.Save):
		if m.recorder.Recording {
			return m, setStatus("Stop the recording before saving", true)
		}
		if !m.recorder.HasTake {
			return m, setStatus("No audio recorded", true)
		}
		m.openForm(formSave)
		return m, textinput.Blink
	}
	return m, nil
}

// handleSearchKey handles keys in search mode.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		return m, nil

	case tea.KeyEnter:
		// Keep the filter, return to the list
		m.mode = ModeNormal
		m.searchInput.Blur()
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Live filtering
	m.searchQuery = m.searchInput.Value()
	m.list.SetItems(m.buildListItems())

	return m, cmd
}

// handleFormKey handles keys in the save/import form.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeForm()
		return m, nil

	case tea.KeyTab, tea.KeyDown:
		m.focusField((m.focus + 1) % len(m.fields))
		return m, textinput.Blink

	case tea.KeyShiftTab, tea.KeyUp:
		m.focusField((m.focus + len(m.fields) - 1) % len(m.fields))
		return m, textinput.Blink

	case tea.KeyEnter:
		if m.focus < len(m.fields)-1 {
			m.focusField(m.focus + 1)
			return m, textinput.Blink
		}
		cmd := m.submitForm()
		m.closeForm()
		return m, cmd
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

// handleConfirmKey handles the delete confirmation.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cue := m.confirmOn
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.mode = ModeNormal
		m.confirmOn = nil
		if cue == nil {
			return m, nil
		}
		ref := cue.FilePath
		return m, m.run("Deleted "+cue.Name, func() error { return m.backend.DeleteCue(ref) })
	case key.Matches(msg, m.keys.Cancel):
		m.mode = ModeNormal
		m.confirmOn = nil
	}
	return m, nil
}

func (m *Model) openForm(kind formKind) {
	var labels []string
	switch kind {
	case formSave:
		labels = []string{"Name", "Description"}
	case formImport:
		labels = []string{"File", "Name (optional)", "Description"}
	}

	m.fields = make([]textinput.Model, len(labels))
	for i, label := range labels {
		ti := textinput.New()
		ti.Placeholder = label
		ti.Prompt = label + ": "
		ti.CharLimit = 256
		m.fields[i] = ti
	}
	m.form = kind
	m.mode = ModeForm
	m.focusField(0)
}

func (m *Model) focusField(i int) {
	for j := range m.fields {
		if j == i {
			m.fields[j].Focus()
		} else {
			m.fields[j].Blur()
		}
	}
	m.focus = i
}

func (m *Model) closeForm() {
	m.fields = nil
	m.focus = 0
	m.mode = ModeNormal
}

func (m Model) submitForm() tea.Cmd {
	values := make([]string, len(m.fields))
	for i, f := range m.fields {
		values[i] = strings.TrimSpace(f.Value())
	}

	switch m.form {
	case formSave:
		name, desc := values[0], values[1]
		return m.run("Saved "+name, func() error {
			_, err := m.backend.SaveRecording(name, desc)
			return err
		})
	case formImport:
		src, name, desc := expandHome(values[0]), values[1], values[2]
		return m.run("Imported "+src, func() error {
			_, err := m.backend.ImportFile(src, name, desc)
			return err
		})
	}
	return nil
}

func (m Model) selectedCue() (model.Cue, bool) {
	item, ok := m.list.SelectedItem().(cueItem)
	if !ok {
		return model.Cue{}, false
	}
	return item.cue, true
}

// buildListItems creates list items from the current cues.
func (m Model) buildListItems() []list.Item {
	cues := m.cues
	if m.searchQuery != "" {
		cues = catalog.Search(cues, m.searchQuery)
	}

	items := make([]list.Item, len(cues))
	for i, c := range cues {
		state := playback.Idle
		if m.active != nil && m.active.FilePath == c.FilePath {
			state = m.session.State
		}
		items[i] = cueItem{cue: c, state: state, index: i}
	}
	return items
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	command := m.cfg.TUI.ClipboardCommand
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, command)}
	}
}

// RunOptions configures the TUI.
type RunOptions struct {
	Config  *config.Config
	Backend Backend
	Bridge  *Bridge
}

// Run starts the TUI and blocks until the user quits.
func Run(opts RunOptions) error {
	m := New(opts.Config, opts.Backend)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if opts.Bridge != nil {
		opts.Bridge.Attach(p)
		defer opts.Bridge.Close()
	}

	_, err := p.Run()
	return err
}
