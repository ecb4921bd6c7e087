package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/leapstack-labs/leaptext/internal/testutil"
)

const sampleCSV = "id,body\n1,hello\n2,world\n"

func newTestModel(t *testing.T, fake *testutil.FakeBackend, initial string) (Model, *orchestrator.Orchestrator) {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	client, err := backend.New(backend.Config{BaseURL: fake.URL, Logger: logger})
	require.NoError(t, err)

	o := orchestrator.New(orchestrator.Config{Backend: client, Logger: logger})
	t.Cleanup(o.Close)

	m := New(context.Background(), o, Options{
		InitialPath: initial,
		ReadFile: func(path string) (backend.File, error) {
			if path == "missing.csv" {
				return backend.File{}, errors.New("open missing.csv: no such file or directory")
			}
			return backend.File{Name: path, Content: []byte(sampleCSV)}, nil
		},
	})
	t.Cleanup(m.Close)
	return m, o
}

// press sends msg. For submitting keys it runs the resulting command and
// feeds its opDoneMsg back; other commands (cursor blink) are dropped.
func press(t *testing.T, m Model, msg tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil || (msg.Type != tea.KeyEnter && msg.Type != tea.KeyCtrlB) {
		return m
	}
	if done, ok := cmd().(opDoneMsg); ok {
		next, _ = m.Update(done)
		m = next.(Model)
	}
	return m
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	ctrlB = tea.KeyMsg{Type: tea.KeyCtrlB}
	ctrlT = tea.KeyMsg{Type: tea.KeyCtrlT}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_PreviewAndProcessHighlightedColumn(t *testing.T) {
	fake := testutil.NewFakeBackend(t)
	fake.OnPreview(testutil.PreviewOK(2, "id", "body"))
	fake.OnBatch(testutil.BatchOK(2, "/files/out.csv"))

	m, _ := newTestModel(t, fake, "reviews.csv")

	m = press(t, m, enter)
	assert.Equal(t, orchestrator.PreviewReady, m.session.Phase)
	view := m.View()
	assert.Contains(t, view, "reviews.csv (2 rows)")
	assert.Contains(t, view, "body-1", "preview table is rendered")

	m = press(t, m, down)
	assert.Equal(t, 1, m.cursor)

	m = press(t, m, enter)
	assert.Equal(t, orchestrator.BatchReady, m.session.Phase)
	assert.Contains(t, m.View(), "Processed 2 rows")
	assert.Contains(t, m.View(), "/files/out.csv")

	batches := fake.RequestsTo("/batch")
	require.Len(t, batches, 1)
	assert.Equal(t, "body", batches[0].Fields["text_column"])
}

func TestModel_ColumnRecovery(t *testing.T) {
	fake := testutil.NewFakeBackend(t)
	fake.OnPreview(testutil.PreviewOK(2, "id", "body"))
	fake.OnBatch(testutil.ColumnMissingKind("id", "body"), testutil.BatchOK(2, "/files/out.csv"))

	m, _ := newTestModel(t, fake, "reviews.csv")
	m = press(t, m, enter)

	// ctrl+b submits with the default column, which the backend rejects.
	m = press(t, m, ctrlB)
	require.Equal(t, orchestrator.ColumnSelectionNeeded, m.session.Phase)
	assert.Nil(t, m.session.LastError)
	assert.Contains(t, m.View(), "could not find the text column")
	assert.Contains(t, m.View(), "Backend: column missing")
	assert.NotContains(t, m.View(), "✗", "a missing column is not an error")

	m = press(t, m, down)
	m = press(t, m, enter)
	assert.Equal(t, orchestrator.BatchReady, m.session.Phase)
	assert.NotContains(t, m.View(), "could not find the text column")

	batches := fake.RequestsTo("/batch")
	require.Len(t, batches, 2)
	assert.Equal(t, orchestrator.DefaultColumn, batches[0].Fields["text_column"])
	assert.Equal(t, "body", batches[1].Fields["text_column"])
}

func TestModel_ChooseColumnDoesNotSubmit(t *testing.T) {
	fake := testutil.NewFakeBackend(t)
	fake.OnPreview(testutil.PreviewOK(2, "id", "body"))

	m, _ := newTestModel(t, fake, "reviews.csv")
	m = press(t, m, enter)
	m = press(t, m, down)
	m = press(t, m, ctrlT)

	assert.Equal(t, "body", m.session.TargetColumn)
	assert.Contains(t, m.View(), "body *")
	assert.Empty(t, fake.RequestsTo("/batch"))
}

func TestModel_SingleText(t *testing.T) {
	fake := testutil.NewFakeBackend(t)
	fake.OnProcess(testutil.ProcessOK("ПРИВЕТ МИР"))

	m, _ := newTestModel(t, fake, "")
	m = press(t, m, tab)
	assert.Equal(t, modeSingle, m.mode)

	m = press(t, m, runes("привет мир"))
	m = press(t, m, enter)

	assert.Equal(t, orchestrator.SingleReady, m.session.Phase)
	assert.Contains(t, m.View(), "ПРИВЕТ МИР")

	calls := fake.RequestsTo("/process")
	require.Len(t, calls, 1)
	assert.Equal(t, "привет мир", calls[0].Fields["input_text"])
}

func TestModel_Notices(t *testing.T) {
	fake := testutil.NewFakeBackend(t)

	t.Run("unreadable path", func(t *testing.T) {
		m, _ := newTestModel(t, fake, "missing.csv")
		m = press(t, m, enter)
		assert.Contains(t, m.View(), "no such file")
		assert.Equal(t, orchestrator.Idle, m.session.Phase)
	})

	t.Run("enter without a file", func(t *testing.T) {
		m, _ := newTestModel(t, fake, "")
		m = press(t, m, enter)
		assert.Contains(t, m.View(), "enter a file path first")
	})

	t.Run("empty text", func(t *testing.T) {
		m, _ := newTestModel(t, fake, "")
		m = press(t, m, tab)
		m = press(t, m, enter)
		assert.Contains(t, m.View(), "enter some text first")
		assert.Empty(t, fake.RequestsTo("/process"))
	})
}

func TestModel_BackendErrorShown(t *testing.T) {
	fake := testutil.NewFakeBackend(t)
	fake.OnPreview(testutil.Failure("unsupported spreadsheet"))

	m, _ := newTestModel(t, fake, "reviews.csv")
	m = press(t, m, enter)

	require.NotNil(t, m.session.LastError)
	assert.Contains(t, m.View(), "unsupported spreadsheet")
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, testutil.NewFakeBackend(t), "")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_QuitsWhenSessionCloses(t *testing.T) {
	m, o := newTestModel(t, testutil.NewFakeBackend(t), "")

	cmd := m.waitForUpdate()
	o.Close()

	msg := cmd()
	assert.IsType(t, subscriptionClosedMsg{}, msg)

	_, next := m.Update(msg)
	require.NotNil(t, next)
	assert.IsType(t, tea.QuitMsg{}, next())
}

func TestModel_SessionChangeRefreshes(t *testing.T) {
	m, o := newTestModel(t, testutil.NewFakeBackend(t), "")
	o.ChooseColumn("text")

	next, cmd := m.Update(sessionChangedMsg{})
	m = next.(Model)

	assert.Equal(t, "text", m.session.TargetColumn)
	assert.NotNil(t, cmd, "keeps listening for updates")
}
