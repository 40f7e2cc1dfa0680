package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/posebridge/internal/config"
	"firestige.xyz/posebridge/internal/provider"
	"firestige.xyz/posebridge/internal/transport"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without connecting",
	Long: `Load the configuration, apply defaults and environment overrides, and check it.
For a queue provider the transport options are decoded by the selected transport,
so unknown keys and bad values are reported too.

Examples:
  posebridge validate -c posebridge.yml
  POSEBRIDGE_TRANSPORT_KIND=ws posebridge validate -c posebridge.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(cmd.OutOrStdout()); err != nil {
			exitWithError("INVALID", err)
		}
	},
}

func runValidate(out io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return describe(out, cfg)
}

// describe checks the transport options and prints a one-line summary.
func describe(out io.Writer, cfg *config.GlobalConfig) error {
	if cfg.Provider.Kind == provider.KindSynthetic {
		fmt.Fprintf(out, "VALID: synthetic provider, tick %s\n", cfg.Consumer.Tick)
		return nil
	}

	d, err := transport.New(cfg.Transport.Kind, cfg.Transport.Options)
	if err != nil {
		return err
	}
	if cfg.Transport.Mode == config.ModeListen {
		if _, ok := d.(transport.Listener); !ok {
			return fmt.Errorf("transport '%s' has no listen mode", d.Kind())
		}
	}

	fmt.Fprintf(out, "VALID: queue provider over %s (%s), queue capacity %d, tick %s\n",
		d.Kind(), cfg.Transport.Mode, cfg.Forwarder.QueueCapacity, cfg.Consumer.Tick)
	return nil
}
