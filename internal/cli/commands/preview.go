package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptext/internal/cli/output"
	"github.com/leapstack-labs/leaptext/internal/filewatch"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/leapstack-labs/leaptext/internal/preview"
	"github.com/spf13/cobra"
)

// PreviewOptions holds options for the preview command.
type PreviewOptions struct {
	Watch    bool
	MaxWidth int
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	opts := &PreviewOptions{}

	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Preview a CSV or Excel file",
		Long: `Upload a file for preview and show the sample rows, row count and
available columns. The column that would be processed is marked with '*'.`,
		Example: `  # Preview a file
  leaptext preview reviews.csv

  # Re-preview whenever the file is saved
  leaptext preview --watch reviews.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-preview when the file changes")
	cmd.Flags().IntVar(&opts.MaxWidth, "max-width", 40, "Truncate table cells to this width (0 disables)")

	return cmd
}

func runPreview(cmd *cobra.Command, path string, opts *PreviewOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	o := cc.NewOrchestrator()
	defer o.Close()

	load := func() error {
		file, err := readUpload(path, cc.Cfg.Upload.MaxSize)
		if err != nil {
			return err
		}
		if err := o.SelectFile(cmd.Context(), file); err != nil {
			return err
		}
		return renderPreview(cc.Renderer, o.Snapshot(), opts.MaxWidth)
	}

	if err := load(); err != nil && !opts.Watch {
		return err
	} else if err != nil {
		cc.Renderer.Error(err.Error())
	}

	if !opts.Watch {
		return nil
	}

	cc.Renderer.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", path))
	return filewatch.Watch(cmd.Context(), path, filewatch.Options{Logger: cc.Logger}, func() {
		if err := load(); err != nil {
			cc.Renderer.Error(err.Error())
		}
	})
}

type previewOutput struct {
	File         string   `json:"file"`
	Rows         int      `json:"rows"`
	Columns      []string `json:"columns"`
	TargetColumn string   `json:"target_column,omitempty"`
	SampleHTML   string   `json:"sample_html,omitempty"`
}

func renderPreview(r *output.Renderer, s orchestrator.Session, maxWidth int) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(previewOutput{
			File:         s.FileName(),
			Rows:         s.Preview.Rows,
			Columns:      s.Columns,
			TargetColumn: s.TargetColumn,
			SampleHTML:   preview.Sanitize(s.Preview.Sample),
		})

	case output.ModeMarkdown:
		r.Header(2, "Preview: "+s.FileName())
		renderPreviewSummary(r, s)
		md, err := preview.Markdown(s.Preview.Sample)
		if err != nil {
			return err
		}
		if md != "" {
			r.Println()
			r.Println(md)
		}
		return nil

	default:
		r.Header(1, "Preview: "+s.FileName())
		renderPreviewSummary(r, s)
		r.Println()
		tbl, err := preview.ParseTable(s.Preview.Sample)
		if err != nil {
			return err
		}
		tbl.Render(r.Writer(), preview.RenderOptions{MaxWidth: maxWidth, Highlight: s.TargetColumn})
		return nil
	}
}

func renderPreviewSummary(r *output.Renderer, s orchestrator.Session) {
	r.KeyValue("Rows", fmt.Sprintf("%d", s.Preview.Rows))
	r.KeyValue("Columns", strings.Join(s.Columns, ", "))
	target := s.TargetColumn
	if target == "" {
		target = "(none, the default column will be tried)"
	}
	r.KeyValue("Text column", target)
}
