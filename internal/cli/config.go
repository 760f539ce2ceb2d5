package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inputkit/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate, print and create configuration files",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	cmd.AddCommand(newConfigPrintCommand(rootOpts))
	cmd.AddCommand(newConfigInitCommand(rootOpts))
	cmd.AddCommand(newConfigSchemaCommand())
	return cmd
}

// Finding is one validation problem.
type Finding struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateResult is the outcome of config validate.
type ValidateResult struct {
	Path     string    `json:"path"`
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors,omitempty"`
	Warnings []Finding `json:"warnings,omitempty"`
	Problem  string    `json:"problem,omitempty"`
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a configuration file against the schema and value rules",
		Long: `Check a configuration file. The path defaults to --config, then to the
platform configuration file.

Exit codes:
  0 - Configuration is valid (warnings may be printed)
  1 - Configuration is invalid
  2 - Command error (file not found, etc.)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = config.ConfigPath()
			}
			return runConfigValidate(rootOpts, cmd, path)
		},
	}
}

func runConfigValidate(opts *RootOptions, cmd *cobra.Command, path string) error {
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "cannot read config", err)
	}

	res := ValidateResult{Path: path}
	cfg, err := config.Load(path)
	var verrs config.ValidationErrors
	switch {
	case err == nil:
		res.Valid = true
		res.Warnings = findings(config.Check(cfg).Warnings())
	case errors.As(err, &verrs):
		res.Errors = findings(verrs.Errors())
		res.Warnings = findings(verrs.Warnings())
	default:
		res.Problem = err.Error()
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		writeValidateText(cmd, res)
	}
	if !res.Valid {
		return NewExitError(ExitFailure, "configuration is invalid")
	}
	return nil
}

func findings(errs config.ValidationErrors) []Finding {
	out := make([]Finding, 0, len(errs))
	for _, e := range errs {
		out = append(out, Finding{Field: e.Field, Message: e.Message})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func writeValidateText(cmd *cobra.Command, res ValidateResult) {
	w := cmd.OutOrStdout()
	if res.Valid {
		fmt.Fprintf(w, "%s: valid\n", res.Path)
	} else {
		fmt.Fprintf(w, "%s: invalid\n", res.Path)
	}
	if res.Problem != "" {
		fmt.Fprintf(w, "  %s\n", res.Problem)
	}
	for _, f := range res.Errors {
		fmt.Fprintf(w, "  error   %s: %s\n", f.Field, f.Message)
	}
	for _, f := range res.Warnings {
		fmt.Fprintf(w, "  warning %s: %s\n", f.Field, f.Message)
	}
}

func newConfigPrintCommand(rootOpts *RootOptions) *cobra.Command {
	var as string
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration. Without --config the first
config.toml, config.json or config.yaml found in the working directory or
the platform configuration directory is used, else the defaults with
environment overrides applied.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg, as)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot encode config", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&as, "as", "toml", "encoding (toml|json|yaml)")
	return cmd
}

func newConfigInitCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Long: `Write the default configuration to path, or to the platform configuration
file. The encoding follows the file extension.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = config.ConfigPath()
			}
			if force {
				if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
					return WrapExitError(ExitCommandError, "cannot write config", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			}

			_, created, err := config.LoadOrCreate(path)
			switch {
			case created:
			case err == nil || fileExists(path):
				return NewExitError(ExitCommandError, fmt.Sprintf("%s already exists (use --force to overwrite)", path))
			default:
				return WrapExitError(ExitCommandError, "cannot write config", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newConfigSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema configuration files are checked against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(config.Schema())
			return err
		},
	}
}
