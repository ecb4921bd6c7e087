package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
)

// Run shows the terminal UI until the user quits or ctx is cancelled.
func Run(ctx context.Context, o *orchestrator.Orchestrator, opts Options) error {
	m := New(ctx, o, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
