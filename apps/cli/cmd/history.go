package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/history"
	"github.com/spf13/cobra"
)

var (
	historyDBPath string
	historyLimit  int
	historyRunID  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored runs",
	Long: `Show runs kept by 'hitcontract run --history-db'.

Examples:
  hitcontract history --history-db runs.db
  hitcontract history --history-db runs.db --limit 5
  hitcontract history --history-db runs.db --run 0b7c...`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBPath, "history-db", getEnvString("HITCONTRACT_HISTORY_DB", ""), "SQLite file holding runs (env: HITCONTRACT_HISTORY_DB)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show, 0 for all")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Show the entries of one run")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	if historyDBPath == "" {
		return exitWith(ExitUsageError, fmt.Errorf("--history-db is required"))
	}

	store, err := history.Open(historyDBPath)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}
	defer store.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if historyRunID != "" {
		entries, err := store.Entries(historyRunID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("run %s not found", historyRunID)
		}
		fmt.Fprintln(w, "TEST\tRESULT\tSTATUS\tDURATION\tDETAIL")
		for _, e := range entries {
			result := string(e.Category)
			if e.ErrorKind != "" {
				result += " (" + e.ErrorKind + ")"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%dms\t%s\n", e.TestName, result, e.StatusCode, e.DurationMs(), firstLine(e.FailureDetail))
		}
		return nil
	}

	runs, err := store.Runs(historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tTOTAL\tPASSED\tMISMATCH\tERRORED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.Started.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond),
			r.Total, r.Passed, r.Mismatch, r.Errored)
	}
	return nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
