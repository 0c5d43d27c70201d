package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/gfxcheck/internal/checkpoint"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the progress saved by an interrupted run",
	Long: `Remove the saved checkpoint so that the next run starts from scratch.

Record files already changed by the interrupted run stay changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := checkpoint.NewStore(getSettings().CheckpointPath(), getLogger())
		existed := store.Exists()
		if err := store.Discard(); err != nil {
			return handleError(ErrCheckpointError, err, "")
		}

		if isJSONOutput() {
			outputSuccess(map[string]interface{}{
				"discarded": existed,
				"dir":       store.Dir(),
			}, nil)
			return nil
		}
		if existed {
			fmt.Println(ui.Success("Saved progress discarded"))
		} else {
			fmt.Println(ui.Info("No saved progress"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
