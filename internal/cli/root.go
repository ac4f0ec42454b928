package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tsfans/query-translator/translator"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qtranslate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qtranslate",
		Short: "Translate queries between SQL and MongoDB shell",
		Long: `Translate queries between MySQL-dialect SQL, MongoDB shell calls and
JSON query descriptors. Every translation goes through one canonical query
model, so any supported surface can be rendered as any other.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)}
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log each translation step to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML options file")

	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewDetectCommand(opts))

	return cmd
}

// loadOptions reads --config and applies the log level, --verbose wins over the file.
func loadOptions(opts *RootOptions, stderr io.Writer) (translator.Options, error) {
	options := translator.DefaultOptions()
	if opts.Config != "" {
		var err error
		options, err = translator.LoadOptions(opts.Config)
		if err != nil {
			return options, &ExitError{Code: ExitCommandError, Message: "load config", Err: err}
		}
	}

	level, err := options.Level()
	if err != nil {
		return options, &ExitError{Code: ExitCommandError, Message: "load config", Err: err}
	}
	if opts.Verbose {
		level = log.DebugLevel
	}
	log.SetOutput(stderr)
	log.SetLevel(level)
	return options, nil
}

// readInput joins the positional args, or reads stdin when there are none or the only one is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", &ExitError{Code: ExitCommandError, Message: "read stdin", Err: err}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", &ExitError{Code: ExitCommandError, Message: "no query given: pass it as an argument or on stdin"}
	}
	return text, nil
}
