package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/gfxcheck/internal/checkpoint"
	"github.com/aidanlsb/gfxcheck/internal/progress"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the progress saved by an interrupted run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := checkpoint.NewStore(getSettings().CheckpointPath(), getLogger())
		state, ok, err := store.Load()
		if err != nil {
			return handleError(ErrCheckpointError, err, "Run 'gfxcheck reset' to discard the saved progress")
		}

		if isJSONOutput() {
			data := map[string]interface{}{"saved": ok}
			if ok {
				data["run_id"] = state.RunID
				data["started_at"] = state.StartedAt
				data["stats"] = state.Stats()
				data["counts"] = countsJSON(state.Log.Counts())
			}
			outputSuccess(data, nil)
			return nil
		}

		if !ok {
			fmt.Println(ui.Info("No saved progress. The next run starts from scratch."))
			return nil
		}
		printStatus(state)
		return nil
	},
}

func printStatus(state *progress.State) {
	st := state.Stats()
	fmt.Println(ui.Header("Run " + shortID(state.RunID)))
	fmt.Printf("  started %s\n", state.StartedAt.Format(time.RFC3339))
	fmt.Printf("  record files: %d of %d validated\n", st.DocumentsValidated, st.Documents)
	fmt.Printf("  records: %d of %d validated\n", st.RecordsValidated, st.Records)

	locs := 0
	for _, loc := range state.Locations {
		if loc.Done() {
			locs++
		}
	}
	fmt.Printf("  locations: %d of %d finished\n", locs, st.Locations)
	fmt.Printf("  %s so far\n", ui.Counts(state.Log.Counts()))
	fmt.Println(ui.Hint("Run 'gfxcheck run' to resume, or 'gfxcheck reset' to discard."))
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
