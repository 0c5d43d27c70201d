package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/gfxcheck/internal/history"
	"github.com/aidanlsb/gfxcheck/internal/report"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

var (
	historyLimit int
	historyHTML  bool
	historyKeep  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived runs",
	Long: `Every finished run is archived with all of its findings in the history
database (history_file in the settings).`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.Runs(historyLimit)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}

		if isJSONOutput() {
			items := make([]map[string]interface{}, 0, len(runs))
			for _, r := range runs {
				items = append(items, runJSON(r))
			}
			outputSuccess(map[string]interface{}{"runs": items}, &Meta{Count: len(runs)})
			return nil
		}

		if len(runs) == 0 {
			fmt.Println(ui.Info("No archived runs"))
			return nil
		}
		tbl := ui.NewTable(ui.NewDisplayContext(), "RUN", "STARTED", "DURATION", "FILES", "RECORDS", "FINDINGS")
		for _, r := range runs {
			tbl.AddRow(
				shortID(r.ID),
				r.StartedAt.Format("2006-01-02 15:04"),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
				strconv.Itoa(r.RecordFiles),
				strconv.Itoa(r.Records),
				ui.Counts(r.Counts),
			)
		}
		fmt.Print(tbl.String())
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the findings of an archived run",
	Long: `Show the findings of an archived run. Any unique prefix of the run ID is
accepted.

Examples:
  gfxcheck history show 3f2a
  gfxcheck history show 3f2a --html > report.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.Run(args[0])
		if err != nil {
			switch {
			case errors.Is(err, history.ErrRunNotFound):
				return handleError(ErrRunNotFound, err, "Run 'gfxcheck history list' to see archived runs")
			case errors.Is(err, history.ErrAmbiguousRun):
				return handleError(ErrRunAmbiguous, err, "Use a longer prefix of the run ID")
			}
			return handleError(ErrDatabaseError, err, "")
		}
		log, err := db.Diagnostics(run.ID)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}

		if isJSONOutput() {
			data := runJSON(run)
			data["diagnostics"] = diagnosticsJSON(log)
			outputSuccess(data, &Meta{Count: log.Len()})
			return nil
		}

		title := fmt.Sprintf("Run %s, %s", shortID(run.ID), run.StartedAt.Format("2006-01-02 15:04"))
		if historyHTML {
			html, err := report.RenderHTML(title, log)
			if err != nil {
				return handleError(ErrInternal, err, "")
			}
			fmt.Print(html)
			return nil
		}

		md := report.RenderMarkdown(title, log)
		display := ui.NewDisplayContext()
		if !display.IsTTY {
			fmt.Print(md)
			return nil
		}
		rendered, err := ui.RenderReport(md, display.TermWidth)
		if err != nil {
			fmt.Print(md)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest archived runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyKeep < 0 {
			return handleErrorMsg(ErrInvalidInput, "--keep must not be negative", "")
		}
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.Prune(historyKeep)
		if err != nil {
			return handleError(ErrDatabaseError, err, "")
		}
		if isJSONOutput() {
			outputSuccess(map[string]interface{}{"deleted": n}, &Meta{Count: n})
			return nil
		}
		fmt.Println(ui.Successf("Deleted %d archived %s", n, pluralRuns(n)))
		return nil
	},
}

func openHistory() (*history.Database, error) {
	db, err := history.Open(getSettings().HistoryPath())
	if err != nil {
		return nil, reportPreRun(ErrDatabaseError, err, "")
	}
	return db, nil
}

func runJSON(r *history.Run) map[string]interface{} {
	return map[string]interface{}{
		"run_id":        r.ID,
		"started_at":    r.StartedAt,
		"finished_at":   r.FinishedAt,
		"settings_path": r.SettingsPath,
		"locations":     r.Locations,
		"record_files":  r.RecordFiles,
		"records":       r.Records,
		"counts":        countsJSON(r.Counts),
	}
}

func pluralRuns(n int) string {
	if n == 1 {
		return "run"
	}
	return "runs"
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	historyShowCmd.Flags().BoolVar(&historyHTML, "html", false, "Render the findings as HTML")
	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 50, "Number of newest runs to keep")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
