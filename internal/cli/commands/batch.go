package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/cli/output"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/spf13/cobra"
)

// ColumnChooser picks a replacement column after the backend rejected one.
type ColumnChooser func(ctx context.Context, file string, columns []string, message string) (string, error)

// BatchOptions holds options for the batch command.
type BatchOptions struct {
	Column         string
	MaxCorrections int
	Download       string
	NoPrompt       bool

	// Choose overrides the interactive prompt.
	Choose ColumnChooser
}

// NewBatchCommand creates the batch command.
func NewBatchCommand() *cobra.Command {
	return newBatchCommandWithOptions(&BatchOptions{})
}

// newBatchCommandWithOptions binds flags to opts, using its current values as defaults.
func newBatchCommandWithOptions(opts *BatchOptions) *cobra.Command {
	if opts.MaxCorrections == 0 {
		opts.MaxCorrections = 3
	}

	cmd := &cobra.Command{
		Use:   "batch <file|glob>...",
		Short: "Process every row of CSV or Excel files",
		Long: `Upload each file, process its text column and report the download link.

The column is taken from --column, else the auto-detected text column, else
the configured default. When the backend reports that the column does not
exist, you are asked to choose one of the columns it lists (on a terminal),
and the file is resubmitted.`,
		Example: `  # Process one file
  leaptext batch reviews.csv

  # Process all spreadsheets below a directory and save the results
  leaptext batch 'data/**/*.xlsx' --download out/

  # Non-interactive: name the column explicitly
  leaptext batch reviews.csv --column body --no-prompt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Column, "column", "c", opts.Column, "Column holding the text to process")
	cmd.Flags().IntVar(&opts.MaxCorrections, "max-corrections", opts.MaxCorrections, "Give up after this many column corrections per file")
	cmd.Flags().StringVarP(&opts.Download, "download", "d", opts.Download, "Directory to save processed files into")
	cmd.Flags().BoolVar(&opts.NoPrompt, "no-prompt", opts.NoPrompt, "Fail instead of prompting for a column")

	return cmd
}

type batchResult struct {
	File          string   `json:"file"`
	Column        string   `json:"column,omitempty"`
	RowsProcessed int      `json:"rows_processed"`
	DownloadRef   string   `json:"download_url,omitempty"`
	SavedTo       string   `json:"saved_to,omitempty"`
	Columns       []string `json:"available_columns,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string, opts *BatchOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}

	choose := opts.Choose
	if choose == nil {
		if !opts.NoPrompt && isTerminal(cmd.InOrStdin()) {
			choose = promptColumn
		} else {
			choose = refuseColumn
		}
	}

	r := cc.Renderer
	results := make([]batchResult, 0, len(paths))
	failed := 0
	for _, p := range paths {
		res := processBatchFile(cmd.Context(), cc, p, opts, choose)
		if res.Error != "" {
			failed++
		}
		results = append(results, res)

		if r.EffectiveMode() != output.ModeJSON {
			renderBatchResult(r, res)
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(results); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func processBatchFile(ctx context.Context, cc *CommandContext, p string, opts *BatchOptions, choose ColumnChooser) batchResult {
	res := batchResult{File: p}
	fail := func(err error) batchResult {
		res.Error = err.Error()
		return res
	}

	o := cc.NewOrchestrator()
	defer o.Close()

	file, err := readUpload(p, cc.Cfg.Upload.MaxSize)
	if err != nil {
		return fail(err)
	}
	if err := o.SelectFile(ctx, file); err != nil {
		return fail(err)
	}
	if opts.Column != "" {
		o.ChooseColumn(opts.Column)
	}

	err = o.SubmitBatch(ctx)
	for corrections := 0; ; corrections++ {
		if err != nil {
			return fail(err)
		}
		s := o.Snapshot()
		res.Columns = s.Columns

		if s.Phase == orchestrator.BatchReady {
			res.Column = s.TargetColumn
			if res.Column == "" {
				res.Column = cc.Cfg.Upload.DefaultColumn
			}
			res.RowsProcessed = s.Batch.RowsProcessed
			res.DownloadRef = s.Batch.DownloadRef
			res.Columns = nil
			break
		}
		if s.Phase != orchestrator.ColumnSelectionNeeded {
			return fail(fmt.Errorf("unexpected state %s", s.Phase))
		}
		if corrections >= opts.MaxCorrections {
			return fail(fmt.Errorf("no usable text column after %d corrections; available columns: %s",
				corrections, strings.Join(s.Columns, ", ")))
		}

		column, cerr := choose(ctx, file.Name, s.Columns, s.ColumnNotice)
		if cerr != nil {
			return fail(cerr)
		}
		cc.Logger.Info("resubmitting with corrected column", "file", p, "column", column)
		err = o.ResolveColumn(ctx, column)
	}

	if opts.Download != "" && res.DownloadRef != "" {
		saved, err := saveDownload(ctx, cc.Client, res.DownloadRef, opts.Download, file.Name)
		if err != nil {
			return fail(err)
		}
		res.SavedTo = saved
	}
	return res
}

func renderBatchResult(r *output.Renderer, res batchResult) {
	if res.Error != "" {
		r.StatusLine(res.File, "error", res.Error)
		return
	}
	detail := fmt.Sprintf("%d rows from column %q", res.RowsProcessed, res.Column)
	switch {
	case res.SavedTo != "":
		detail += ", saved to " + res.SavedTo
	case res.DownloadRef != "":
		detail += ", download " + res.DownloadRef
	}
	r.StatusLine(res.File, "success", detail)
}

// expandPaths resolves glob arguments with doublestar. Plain paths are kept
// even when they do not exist so the per-file error names them.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			paths = append(paths, arg)
			continue
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		for _, m := range matches {
			if orchestrator.HasAcceptedExtension(m) {
				paths = append(paths, m)
			}
		}
	}
	slices.Sort(paths)
	paths = slices.Compact(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV or Excel files match %s", strings.Join(args, " "))
	}
	return paths, nil
}

func saveDownload(ctx context.Context, client *backend.Client, ref, dir, uploadName string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	dest := filepath.Join(dir, downloadFileName(ref, uploadName))

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := client.Download(ctx, ref, f); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return dest, nil
}

// downloadFileName is the last segment of ref, or <upload>_processed.csv when
// ref does not end in a file name.
func downloadFileName(ref, uploadName string) string {
	if u, err := url.Parse(ref); err == nil {
		switch name := path.Base(u.Path); name {
		case "", ".", "..", "/":
		default:
			return name
		}
	}
	return strings.TrimSuffix(uploadName, filepath.Ext(uploadName)) + "_processed.csv"
}

func promptColumn(ctx context.Context, file string, columns []string, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg := fmt.Sprintf("%s: choose the column that holds the text", file)
	if message != "" {
		msg = fmt.Sprintf("%s: %s. Choose the column that holds the text", file, message)
	}
	var out string
	prompt := &survey.Select{
		Message: msg,
		Options: columns,
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", fmt.Errorf("column selection cancelled")
		}
		return "", err
	}
	return out, nil
}

func refuseColumn(_ context.Context, file string, columns []string, _ string) (string, error) {
	return "", fmt.Errorf("%s: text column not found; available columns: %s (use --column)",
		file, strings.Join(columns, ", "))
}
