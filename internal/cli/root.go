// Package cli implements the inputctl command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"inputkit/internal/config"
	"inputkit/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for inputctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "inputctl",
		Short: "Inspect and replay input interpretation",
		Long: `inputctl drives the input hub outside a UI.

It replays recorded pointer, keyboard and speech traces through the gesture
classifier, focus navigator and voice dispatcher, and validates the
configuration those components read.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")

	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// loadConfig reads the file named by --config. Without the flag it falls
// back to a discovered config file, then to defaults plus environment
// overrides.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return config.LoadFromEnv(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// logger builds the diagnostic logger for a command. Console output goes
// to the command's error stream so it never mixes with results.
func (o *RootOptions) logger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	lc, err := cfg.LoggingConfig()
	if err != nil {
		return nil, err
	}
	switch lc.Output {
	case "stdout", "stderr":
		lc.Writer = cmd.ErrOrStderr()
	}
	if o.Verbose {
		lc.Level = logging.LevelDebug
	} else if lc.Level < logging.LevelWarn {
		lc.Level = logging.LevelWarn
	}
	lc.Component = "inputctl"
	return logging.New(lc)
}
