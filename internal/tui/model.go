// Package tui is the terminal front end for one orchestrator session.
//
// The model never owns session state: every orchestrator change pings the
// subscription channel and the model re-reads a snapshot. Backend calls run
// as tea.Cmds so the UI keeps animating while they are in flight.
package tui

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/leapstack-labs/leaptext/internal/preview"
)

type mode int

const (
	modeFile mode = iota
	modeSingle
)

// Options configures the terminal UI.
type Options struct {
	// ReadFile loads an upload from a path typed by the user.
	ReadFile func(path string) (backend.File, error)
	// InitialPath is loaded on start when set.
	InitialPath string
	// CellWidth truncates preview cells; 0 uses a default.
	CellWidth int
}

// sessionChangedMsg is sent when the orchestrator pinged its subscribers.
type sessionChangedMsg struct{}

// subscriptionClosedMsg is sent when the orchestrator was closed.
type subscriptionClosedMsg struct{}

// opDoneMsg reports the end of a backend operation started by the model.
type opDoneMsg struct {
	err error
	// local is set for failures the orchestrator never saw, like unreadable paths.
	local bool
}

// Model is the bubbletea model.
type Model struct {
	ctx      context.Context
	orch     *orchestrator.Orchestrator
	updates  chan struct{}
	readFile func(string) (backend.File, error)
	initial  string
	cellW    int

	session    orchestrator.Session
	mode       mode
	cursor     int
	loadedPath string
	notice     string

	pathInput textinput.Model
	textInput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	help      help.Model
	keys      keyMap
	styles    styles

	width  int
	height int
}

// New creates a Model bound to o. It subscribes immediately; Close releases
// the subscription.
func New(ctx context.Context, o *orchestrator.Orchestrator, opts Options) Model {
	pi := textinput.New()
	pi.Prompt = "File: "
	pi.Placeholder = "path/to/reviews.csv"
	pi.CharLimit = 1024
	pi.SetValue(opts.InitialPath)
	pi.Focus()

	ti := textinput.New()
	ti.Prompt = "Text: "
	ti.Placeholder = "text to process"
	ti.CharLimit = 8192

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	cellW := opts.CellWidth
	if cellW <= 0 {
		cellW = 24
	}

	return Model{
		ctx:       ctx,
		orch:      o,
		updates:   o.Subscribe(),
		readFile:  opts.ReadFile,
		initial:   opts.InitialPath,
		cellW:     cellW,
		session:   o.Snapshot(),
		pathInput: pi,
		textInput: ti,
		viewport:  viewport.New(80, 10),
		spinner:   sp,
		help:      help.New(),
		keys:      defaultKeyMap(),
		styles:    defaultStyles(),
	}
}

// Close releases the orchestrator subscription.
func (m Model) Close() {
	m.orch.Unsubscribe(m.updates)
}

// Init starts the spinner, the subscription pump and the initial load.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, m.waitForUpdate()}
	if m.initial != "" {
		cmds = append(cmds, m.selectFile(m.initial))
	}
	return tea.Batch(cmds...)
}

func (m Model) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return subscriptionClosedMsg{}
		}
		return sessionChangedMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height/3, 5)
		m.refreshPreview()
		return m, nil

	case sessionChangedMsg:
		m.refresh()
		return m, m.waitForUpdate()

	case subscriptionClosedMsg:
		return m, tea.Quit

	case opDoneMsg:
		m.refresh()
		m.notice = noticeFor(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Mode):
		if m.mode == modeFile {
			m.mode = modeSingle
			m.pathInput.Blur()
			return m, m.textInput.Focus()
		}
		m.mode = modeFile
		m.textInput.Blur()
		return m, m.pathInput.Focus()

	case key.Matches(msg, m.keys.Reset):
		m.orch.Reset()
		m.loadedPath = ""
		m.notice = ""
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	if m.mode == modeFile {
		switch {
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.session.Columns)-1 {
				m.cursor++
			}
			return m, nil
		case key.Matches(msg, m.keys.Choose):
			if col, ok := m.cursorColumn(); ok {
				m.orch.ChooseColumn(col)
				m.refresh()
			}
			return m, nil
		case key.Matches(msg, m.keys.Batch):
			m.notice = ""
			return m, m.submitBatch()
		}
	}

	var cmd tea.Cmd
	if m.mode == modeFile {
		m.pathInput, cmd = m.pathInput.Update(msg)
	} else {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	return m, cmd
}

// submit is enter: load a newly typed path, else process the file with the
// highlighted column; in text mode, process the text.
func (m Model) submit() (tea.Model, tea.Cmd) {
	m.notice = ""

	if m.mode == modeSingle {
		text := strings.TrimSpace(m.textInput.Value())
		if text == "" {
			m.notice = "enter some text first"
			return m, nil
		}
		o, ctx := m.orch, m.ctx
		return m, func() tea.Msg {
			return opDoneMsg{err: o.SubmitSingle(ctx, text)}
		}
	}

	path := strings.TrimSpace(m.pathInput.Value())
	if path != "" && path != m.loadedPath {
		m.loadedPath = path
		return m, m.selectFile(path)
	}
	if m.session.File == nil {
		m.notice = "enter a file path first"
		return m, nil
	}
	if col, ok := m.cursorColumn(); ok {
		o, ctx := m.orch, m.ctx
		return m, func() tea.Msg {
			return opDoneMsg{err: o.ResolveColumn(ctx, col)}
		}
	}
	return m, m.submitBatch()
}

func (m Model) selectFile(path string) tea.Cmd {
	o, ctx, read := m.orch, m.ctx, m.readFile
	return func() tea.Msg {
		file, err := read(path)
		if err != nil {
			return opDoneMsg{err: err, local: true}
		}
		return opDoneMsg{err: o.SelectFile(ctx, file)}
	}
}

func (m Model) submitBatch() tea.Cmd {
	o, ctx := m.orch, m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: o.SubmitBatch(ctx)}
	}
}

func (m Model) cursorColumn() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.session.Columns) {
		return "", false
	}
	return m.session.Columns[m.cursor], true
}

// refresh re-reads the session and keeps the cursor on a sensible column.
func (m *Model) refresh() {
	prev := m.session.Columns
	m.session = m.orch.Snapshot()

	if !slices.Equal(prev, m.session.Columns) {
		m.cursor = 0
		if i := slices.Index(m.session.Columns, m.session.TargetColumn); i >= 0 {
			m.cursor = i
		}
	}
	if m.cursor >= len(m.session.Columns) {
		m.cursor = max(len(m.session.Columns)-1, 0)
	}
	m.refreshPreview()
}

func (m *Model) refreshPreview() {
	if !m.session.ShowPreview() {
		m.viewport.SetContent("")
		return
	}
	tbl, err := preview.ParseTable(m.session.Preview.Sample)
	if err != nil {
		m.viewport.SetContent("preview unavailable: " + err.Error())
		return
	}
	var sb strings.Builder
	tbl.Render(&sb, preview.RenderOptions{
		MaxWidth:  m.cellW,
		Highlight: m.session.TargetColumn,
	})
	m.viewport.SetContent(sb.String())
}

// noticeFor maps errors the session does not record itself to a message.
func noticeFor(msg opDoneMsg) string {
	err := msg.err
	switch {
	case err == nil, errors.Is(err, orchestrator.ErrSuperseded):
		return ""
	case msg.local:
		return err.Error()
	case errors.Is(err, orchestrator.ErrInFlight):
		return "a request of this kind is already running"
	case errors.Is(err, orchestrator.ErrNoFile):
		return "enter a file path first"
	default:
		return ""
	}
}
