package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/cli/output"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/spf13/cobra"
)

// ProcessOptions holds options for the process command.
type ProcessOptions struct {
	Query     string
	Threshold float64
}

// NewProcessCommand creates the process command.
func NewProcessCommand() *cobra.Command {
	opts := &ProcessOptions{}

	cmd := &cobra.Command{
		Use:   "process [text...]",
		Short: "Process a single text",
		Long: `Send one text to the backend and print the processed result.

Text comes from the arguments, or from stdin when piped. With no arguments
on a terminal an interactive prompt submits each line.`,
		Example: `  # Process text from arguments
  leaptext process "привет мир"

  # Search for a query with a similarity threshold
  leaptext process --query мир --threshold 0.7 "привет мир"

  # Pipe text in
  cat note.txt | leaptext process

  # Interactive prompt
  leaptext process`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "Query to search for in the text")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0.65, "Similarity threshold for --query (sent only when set)")

	return cmd
}

func runProcess(cmd *cobra.Command, args []string, opts *ProcessOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	o := cc.NewOrchestrator()
	defer o.Close()

	req := backend.SingleRequest{Query: opts.Query}
	if cmd.Flags().Changed("threshold") {
		req.Threshold = opts.Threshold
	}

	switch {
	case len(args) > 0:
		req.Text = strings.Join(args, " ")
	case !isTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		req.Text = strings.TrimRight(string(content), "\r\n")
	default:
		return runProcessREPL(cmd, cc, o, req)
	}

	return submitAndRender(cmd.Context(), cc.Renderer, o, req)
}

func submitAndRender(ctx context.Context, r *output.Renderer, o *orchestrator.Orchestrator, req backend.SingleRequest) error {
	if err := o.SubmitSingleRequest(ctx, req); err != nil {
		return err
	}
	renderSingle(r, o.Snapshot())
	return nil
}

type singleOutput struct {
	Input  string `json:"input"`
	Result string `json:"result"`
}

func renderSingle(r *output.Renderer, s orchestrator.Session) {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		_ = r.JSON(singleOutput{Input: s.Single.Input, Result: s.Single.Result})
	case output.ModeMarkdown:
		r.Header(2, "Result")
		r.Println(s.Single.Result)
	default:
		r.Println(s.Single.Result)
	}
}
