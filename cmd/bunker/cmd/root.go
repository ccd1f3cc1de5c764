// Package cmd implements the CLI commands for bunker.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/bunker/internal/config"
	"github.com/jmylchreest/bunker/internal/observability"
	"github.com/jmylchreest/bunker/internal/version"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "bunker",
	Short:   "Declarative media-conversion pipeline engine",
	Version: version.Short(),
	Long: `bunker runs declarative media-conversion recipes: an ordered
sequence of named stages (decode, annotate, resize, encode, video_decode,
video_encode) applied to each input, with device-aware scheduling and
optional quality gates.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return initLogging()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml, /etc/bunker, $HOME/.bunker)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func initLogging() error {
	logging := config.LoggingConfig{Level: "info", Format: "json"}
	if cfg, err := loadConfig(); err == nil {
		logging = cfg.Logging
	}
	observability.SetDefault(observability.NewLogger(logging))
	return nil
}
