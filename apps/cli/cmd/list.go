package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/parser"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List all cases in suite files",
	Long: `List the cases of each suite with their tags and dependencies.

Examples:
  hitcontract list company.yaml
  hitcontract list ./contracts/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	if len(files) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	out := cmd.OutOrStdout()
	failed := false
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			failed = true
			continue
		}

		fmt.Fprintf(out, "\n%s (%s):\n", suite.Name, file)
		for _, c := range suite.Cases {
			fmt.Fprintf(out, "  - %s  [%s %s]\n", c.Name, c.Request.Method, c.Request.URL)
			if len(c.Tags) > 0 {
				fmt.Fprintf(out, "    tags: %s\n", strings.Join(c.Tags, ", "))
			}
			if len(c.DependsOn) > 0 {
				fmt.Fprintf(out, "    depends on: %s\n", strings.Join(c.DependsOn, ", "))
			}
			if c.Skip != "" {
				fmt.Fprintf(out, "    skipped: %s\n", c.Skip)
			}
			if c.Only {
				fmt.Fprintf(out, "    only\n")
			}
		}
	}

	if failed {
		return exitWith(ExitParseError, nil)
	}
	return nil
}
