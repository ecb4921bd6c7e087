package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/spf13/cobra"
)

const replPrompt = "leaptext> "

func runProcessREPL(cmd *cobra.Command, cc *CommandContext, o *orchestrator.Orchestrator, base backend.SingleRequest) error {
	ctx := cmd.Context()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile(),
		AutoComplete:    newDotCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leaptext (backend: %s)\n", cc.Cfg.Backend.URL)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Each line is sent for processing. Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	req := base
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			quit, err := handleREPLCommand(cmd.OutOrStdout(), &req, line)
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
			if quit {
				break
			}
			continue
		}

		req.Text = line
		if err := submitAndRender(ctx, cc.Renderer, o, req); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}

	return nil
}

// handleREPLCommand applies a dot-command to req. It reports whether the REPL should exit.
func handleREPLCommand(w io.Writer, req *backend.SingleRequest, line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	arg := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))

	switch command {
	case ".quit", ".exit":
		return true, nil

	case ".help":
		printREPLHelp(w)

	case ".query":
		req.Query = arg
		if arg == "" {
			_, _ = fmt.Fprintln(w, "query cleared")
		} else {
			_, _ = fmt.Fprintf(w, "query set to %q\n", arg)
		}

	case ".threshold":
		if arg == "" {
			req.Threshold = 0
			_, _ = fmt.Fprintln(w, "threshold cleared")
			return false, nil
		}
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil || v < 0 || v > 1 {
			return false, fmt.Errorf("threshold must be a number between 0 and 1, got %q", arg)
		}
		req.Threshold = v
		_, _ = fmt.Fprintf(w, "threshold set to %g\n", v)

	case ".settings":
		_, _ = fmt.Fprintf(w, "query: %q\nthreshold: %g\n", req.Query, req.Threshold)

	default:
		return false, fmt.Errorf("unknown command: %s (type .help for commands)", command)
	}
	return false, nil
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .query [text]      Set or clear the query sent with each line
  .threshold [0..1]  Set or clear the similarity threshold
  .settings          Show the current query and threshold
  .quit / .exit      Exit the REPL

Tips:
  - Every other line is sent to the backend as-is
  - Use arrow keys to navigate history
`
	_, _ = fmt.Fprintln(w, help)
}

func newDotCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".query"),
		readline.PcItem(".threshold"),
		readline.PcItem(".settings"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// historyFile returns a per-user history path, or "" to disable history.
func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "leaptext")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ""
	}
	return filepath.Join(dir, "process_history")
}
