package cmd

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/parser"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate suite files without sending requests",
	Long: `Validate suite files without sending requests. Unknown keys, bad
patterns, duplicate case names and dependency cycles are reported with
their line numbers.

Examples:
  hitcontract validate company.yaml
  hitcontract validate ./contracts/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	if len(files) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	hasErrors := false
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d cases)\n", file, len(suite.Cases))
		}
	}

	if hasErrors {
		return exitWith(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}
