// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/posebridge/internal/config"
)

// Global flags
var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "posebridge",
	Short: "Posebridge - pose detection ingest for real-time consumers",
	Long: `Posebridge receives pose detection results from an inference process and hands
them to a polling consumer.

Results arrive as FlatBuffers envelopes over a length-prefixed TCP stream, WebSocket
binary messages or Kafka records. A forwarder decodes each envelope and pushes it into
a bounded queue; the consumer polls the queue once per tick without ever blocking.
A synthetic provider animates a figure without any producer, for development.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and POSEBRIDGE_* env vars when empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the file given by --config, or defaults when none is set.
func loadConfig() (*config.GlobalConfig, error) {
	if configFile == "" {
		return config.LoadDefaults()
	}
	return config.Load(configFile)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
