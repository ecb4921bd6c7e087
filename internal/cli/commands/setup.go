package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/cli/config"
	"github.com/leapstack-labs/leaptext/internal/cli/output"
	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Client   *backend.Client
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a backend client and renderer.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	bc := cfg.BackendClientConfig()
	bc.Logger = logger
	if cfg.Backend.StrictContract {
		contract, err := backend.LoadContract(cmd.Context())
		if err != nil {
			return nil, err
		}
		bc.Contract = contract
	}

	client, err := backend.New(bc)
	if err != nil {
		return nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Client:   client,
		Renderer: r,
	}, nil
}

// NewOrchestrator creates a session bound to the context's client and limits.
// The caller must Close it.
func (c *CommandContext) NewOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Config{
		Backend:       c.Client,
		Logger:        c.Logger,
		MaxFileSize:   c.Cfg.Upload.MaxSize,
		AutoColumn:    c.Cfg.Upload.AutoColumn,
		DefaultColumn: c.Cfg.Upload.DefaultColumn,
		Timeout:       c.Cfg.Backend.Timeout,
	})
}

// getConfig returns the loaded configuration, or the defaults when commands
// run without the root command (tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Defaults()
}

// readUpload loads a file from disk, refusing oversized files before reading them.
func readUpload(path string, maxSize int) (backend.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return backend.File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if info.IsDir() {
		return backend.File{}, fmt.Errorf("%s is a directory", path)
	}
	if maxSize > 0 && info.Size() > int64(maxSize) {
		return backend.File{}, &orchestrator.ValidationError{
			Name:   filepath.Base(path),
			Reason: fmt.Sprintf("file is %d bytes, the limit is %d", info.Size(), maxSize),
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return backend.File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return backend.File{Name: filepath.Base(path), Content: content}, nil
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
