package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/leapstack-labs/leaptext/internal/ui"
	"github.com/spf13/cobra"
)

// UIOptions holds options for the ui command.
type UIOptions struct {
	Port      int
	NoBrowser bool
}

// NewUICommand creates the ui command.
func NewUICommand() *cobra.Command {
	opts := &UIOptions{}

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Start the browser UI",
		Long: `Start a local web server with the leaptext page:

- Process a single text
- Upload a CSV or Excel file and preview it
- Choose the text column when the backend cannot find it
- Download the processed file

Each browser gets its own session, kept for ui.session_ttl after its last request.`,
		Example: `  # Start UI on default port
  leaptext ui

  # Start on custom port
  leaptext ui --port 3000

  # Start without auto-opening browser
  leaptext ui --no-browser`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")

	return cmd
}

func runUI(cmd *cobra.Command, opts *UIOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	// CLI flags override config file
	port := cc.Cfg.UI.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	autoOpen := cc.Cfg.UI.AutoOpen && !opts.NoBrowser

	server, err := ui.NewServer(ui.Config{
		NewSession:    cc.NewOrchestrator,
		Downloader:    cc.Client,
		Port:          port,
		SessionSecret: cc.Cfg.UI.SessionSecret,
		SessionTTL:    cc.Cfg.UI.SessionTTL,
		MaxFileSize:   cc.Cfg.Upload.MaxSize,
		Logger:        cc.Logger,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	if autoOpen {
		go openBrowser(url)
	}

	cc.Renderer.Println("Starting UI server on " + url)
	cc.Renderer.Muted(fmt.Sprintf("Backend: %s. Press Ctrl+C to stop", cc.Cfg.Backend.URL))

	return server.Serve(cmd.Context())
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
