package commands

import (
	"fmt"

	"github.com/leapstack-labs/leaptext/internal/cli/config"
	"github.com/leapstack-labs/leaptext/internal/cli/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the configuration after defaults, leaptext.yaml, LEAPTEXT_*
environment variables and flags have been applied. The session secret is masked.`,
		Example: `  # Show configuration
  leaptext config

  # See what an environment override does
  LEAPTEXT_BACKEND__URL=http://gpu-box:5000 leaptext config -o json`,
		Args: cobra.NoArgs,
		RunE: runConfig,
	}
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg := getConfig()
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	effective := config.Effective()

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(effective)
	}

	data, err := yaml.Marshal(effective)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	source := config.GetConfigFileUsed()
	if source == "" {
		source = "(none, defaults and environment only)"
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Header(2, "Configuration")
		r.KeyValue("File", source)
		r.Println()
		r.Println("```yaml")
		r.Printf("%s", data)
		r.Println("```")
		return nil
	}

	r.Muted("# config file: " + source)
	r.Printf("%s", data)
	return nil
}
