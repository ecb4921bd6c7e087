package commands

import (
	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/tui"
	"github.com/spf13/cobra"
)

// NewTUICommand creates the tui command.
func NewTUICommand() *cobra.Command {
	var cellWidth int

	cmd := &cobra.Command{
		Use:   "tui [file]",
		Short: "Interactive terminal UI",
		Long: `Open a full-screen terminal UI for one session.

Type a file path and press enter to preview it, move through the columns
with the arrow keys and press enter to process the file with the
highlighted column. Tab switches to single-text mode.`,
		Example: `  # Start empty
  leaptext tui

  # Preview a file right away
  leaptext tui reviews.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			o := cc.NewOrchestrator()
			defer o.Close()

			initial := ""
			if len(args) == 1 {
				initial = args[0]
			}
			maxSize := cc.Cfg.Upload.MaxSize
			return tui.Run(cmd.Context(), o, tui.Options{
				InitialPath: initial,
				CellWidth:   cellWidth,
				ReadFile: func(path string) (backend.File, error) {
					return readUpload(path, maxSize)
				},
			})
		},
	}

	cmd.Flags().IntVar(&cellWidth, "max-width", 24, "Truncate preview cells to this width")

	return cmd
}
