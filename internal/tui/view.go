package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
)

type styles struct {
	title    lipgloss.Style
	phase    lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	label    lipgloss.Style
	cursor   lipgloss.Style
	selected lipgloss.Style
	success  lipgloss.Style
	err      lipgloss.Style
	notice   lipgloss.Style
	result   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		phase:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		tab:      lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("8")),
		tabOn:    lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		cursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		selected: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		success:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true),
		result:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	s := m.session

	b.WriteString(m.styles.title.Render("leaptext"))
	b.WriteString("  ")
	if s.Phase.Loading() {
		b.WriteString(m.spinner.View())
	}
	b.WriteString(m.styles.phase.Render(s.Phase.Label()))
	b.WriteString("\n")

	fileTab, textTab := m.styles.tabOn, m.styles.tab
	if m.mode == modeSingle {
		fileTab, textTab = m.styles.tab, m.styles.tabOn
	}
	b.WriteString(fileTab.Render("File") + textTab.Render("Text") + "\n\n")

	if m.mode == modeFile {
		m.viewFile(&b)
	} else {
		m.viewSingle(&b)
	}

	if s.LastError != nil {
		b.WriteString("\n" + m.styles.err.Render("✗ "+s.LastError.Message) + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + m.styles.notice.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m Model) viewFile(b *strings.Builder) {
	s := m.session
	b.WriteString(m.pathInput.View() + "\n")

	if name := s.FileName(); name != "" {
		line := m.styles.label.Render("Loaded:") + " " + name
		if s.Preview.Loaded {
			line += fmt.Sprintf(" (%d rows)", s.Preview.Rows)
		}
		b.WriteString(line + "\n")
	}

	if s.ShowPreview() {
		b.WriteString("\n" + m.viewport.View() + "\n")
	}

	if len(s.Columns) > 0 {
		b.WriteString("\n")
		if s.ShowSelector() {
			b.WriteString(m.styles.notice.Render("The backend could not find the text column.") + "\n")
			if s.ColumnNotice != "" {
				b.WriteString(m.styles.label.Render("Backend") + ": " + s.ColumnNotice + "\n")
			}
			b.WriteString("Choose one and press enter to resubmit:\n")
		} else {
			b.WriteString(m.styles.label.Render("Columns") + " (enter processes the highlighted one):\n")
		}
		for i, c := range s.ColumnChoices() {
			prefix := "  "
			name := c.Name
			if i == m.cursor {
				prefix = m.styles.cursor.Render("> ")
			}
			if c.Selected {
				name = m.styles.selected.Render(name + " *")
			}
			b.WriteString(prefix + name + "\n")
		}
	}

	if s.ShowBatchResult() {
		b.WriteString("\n" + m.styles.success.Render(fmt.Sprintf("✓ Processed %d rows", s.Batch.RowsProcessed)) + "\n")
		if s.Batch.DownloadRef != "" {
			b.WriteString(m.styles.label.Render("Download:") + " " + s.Batch.DownloadRef + "\n")
		}
	}
}

func (m Model) viewSingle(b *strings.Builder) {
	s := m.session
	b.WriteString(m.textInput.View() + "\n")
	if s.Busy(orchestrator.ActionSingle) {
		b.WriteString(m.spinner.View() + " processing\n")
	}
	if s.ShowSingleResult() {
		b.WriteString("\n" + m.styles.result.Render(s.Single.Result) + "\n")
	}
}
