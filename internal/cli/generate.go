package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/gfxcheck/internal/check"
	"github.com/aidanlsb/gfxcheck/internal/runner"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

var generateForce bool

var generateCmd = &cobra.Command{
	Use:   "generate <folder> <destination-template>",
	Short: "Write a record file for the numbered images of a folder",
	Long: `Write a record file into <folder> with one record per image whose file name
is a number. The destination is the template with {id} replaced by that
number. Both booleans (preload and amap) are declared false.

Only the files directly inside <folder> are considered. An existing record
file is kept unless --force is given.

Examples:
  gfxcheck generate portraits "graphics/pictures/person/{id}/portrait"
  gfxcheck generate logos "graphics/pictures/club/{id}/logo" --force`,
	Args: cobra.ExactArgs(2),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "Overwrite an existing record file")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	folder, template := args[0], args[1]
	if !strings.Contains(template, check.Placeholder) {
		return handleErrorMsg(ErrInvalidInput,
			fmt.Sprintf("destination template %q has no %s placeholder", template, check.Placeholder),
			"Mark where the identifier goes, e.g. graphics/pictures/person/{id}/portrait")
	}

	path, n, err := runner.Generate(folder, template, getSettings(), generateForce)
	if err != nil {
		if errors.Is(err, runner.ErrRecordFileExists) {
			return handleError(ErrFileExists, err, "Use --force to overwrite it")
		}
		return handleError(ErrFileWriteError, err, "")
	}

	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"path":    path,
			"records": n,
		}, &Meta{Count: n})
		return nil
	}
	fmt.Println(ui.Successf("Wrote %d records to %s", n, ui.FilePath(path)))
	return nil
}
