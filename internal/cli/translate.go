package cli

import (
	"github.com/spf13/cobra"

	"github.com/tsfans/query-translator/translator"
)

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "translate [query]",
		Short: "Translate a query to another surface",
		Long: `Translate a SQL statement, MongoDB shell call or JSON query descriptor.

The input surface is detected automatically. Without --to, SQL is rendered
as a MongoDB shell call and everything else as SQL. The query is read from
stdin when no argument is given.`,
		Example: `  qtranslate translate "SELECT name FROM users WHERE age > 30"
  qtranslate translate --to descriptor 'db.users.find({age: {$gt: 30}})'
  echo 'db.users.deleteOne({_id: 1})' | qtranslate translate`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(rootOpts, to, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", "", "target surface (sql|mongo|descriptor)")

	return cmd
}

func runTranslate(opts *RootOptions, to string, cmd *cobra.Command, args []string) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	target := translator.SurfaceUnknown
	if to != "" {
		var err error
		target, err = translator.ParseSurface(to)
		if err != nil {
			return formatter.Failure(ExitCommandError, err)
		}
	}

	options, err := loadOptions(opts, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Failure(ExitCommandError, err)
	}
	tr, err := translator.New(options)
	if err != nil {
		return formatter.Failure(ExitCommandError, err)
	}

	text, err := readInput(cmd, args)
	if err != nil {
		return formatter.Failure(ExitCommandError, err)
	}

	res, err := tr.Translate(text, target)
	if err != nil {
		return formatter.Failure(ExitFailure, err)
	}
	return formatter.Success(res.Output, res)
}
