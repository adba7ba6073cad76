package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/diverge/internal/config"
)

// ValidationResult holds config validation output. Config echoes the fully
// resolved configuration, defaults applied, when the file is valid.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Config *config.Run `json:"config,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func (r ValidationResult) String() string {
	if !r.Valid {
		return "invalid: " + r.Error
	}
	return "valid"
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a run configuration file",
		Long: `Validate a run configuration YAML file against the embedded schema.

On success the fully resolved configuration, with schema defaults
applied, is echoed back. Validation problems exit with code 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(path)
	if err != nil {
		if werr := out.Success(ValidationResult{Valid: false, Error: err.Error()}); werr != nil {
			return WrapExitError(ExitCommandError, "failed to write output", werr)
		}
		return WrapExitError(ExitDivergence, "invalid config", err)
	}

	return out.Success(ValidationResult{Valid: true, Config: &cfg})
}
