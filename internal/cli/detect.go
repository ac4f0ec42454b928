package cli

import (
	"github.com/spf13/cobra"

	"github.com/tsfans/query-translator/translator"
)

// DetectResult is the JSON payload of the detect command.
type DetectResult struct {
	Surface translator.Surface `json:"surface"`
}

// NewDetectCommand creates the detect command.
func NewDetectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "detect [query]",
		Short:         "Print whether a query is sql, mongo or descriptor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

			text, err := readInput(cmd, args)
			if err != nil {
				return formatter.Failure(ExitCommandError, err)
			}
			surface, err := translator.Detect(text)
			if err != nil {
				return formatter.Failure(ExitFailure, err)
			}
			return formatter.Success(surface.String(), DetectResult{Surface: surface})
		},
	}

	return cmd
}
