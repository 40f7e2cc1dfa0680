package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/posebridge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults and POSEBRIDGE_* environment overrides
have been applied, under the posebridge root key.

Examples:
  posebridge config show
  posebridge config show -c posebridge.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if err := showConfig(cmd.OutOrStdout(), cfg); err != nil {
			exitWithError("failed to render config", err)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func showConfig(out io.Writer, cfg *config.GlobalConfig) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]*config.GlobalConfig{config.RootKey: cfg}); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
