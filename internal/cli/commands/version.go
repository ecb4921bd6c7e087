package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptext/internal/orchestrator"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leaptext version, the configured backend and the accepted upload types.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := getConfig()
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "leaptext v%s\n", version)
			_, _ = fmt.Fprintln(w, "Client for the leaptext text-processing backend")
			_, _ = fmt.Fprintf(w, "Backend: %s\n", cfg.Backend.URL)
			_, _ = fmt.Fprintf(w, "Uploads: %s (up to %d bytes)\n",
				strings.Join(orchestrator.AcceptedExtensions, ", "), cfg.Upload.MaxSize)
		},
	}
}
