package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/gfxcheck/internal/document"
	"github.com/aidanlsb/gfxcheck/internal/flags"
	"github.com/aidanlsb/gfxcheck/internal/grammar"
	"github.com/aidanlsb/gfxcheck/internal/progress"
	"github.com/aidanlsb/gfxcheck/internal/runner"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

var formatCmd = &cobra.Command{
	Use:   "format <record-file>...",
	Short: "Rewrite record files in canonical form",
	Long: `Rewrite record files in canonical form: declared booleans first, then one
record per line sorted by source and destination, indented with the
configured [format] indent.

Duplicate records are handled as in a run: with DELETE_DUPLICATE_RECORDS they
are dropped, otherwise they are reported and a single copy is kept.

Examples:
  gfxcheck format portraits/config.xml
  gfxcheck format */config.xml --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)
}

type formatResult struct {
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
}

func runFormat(cmd *cobra.Command, args []string) error {
	env, err := newSingleFileEnv()
	if err != nil {
		return err
	}
	state := progress.New(nil, time.Now())
	r := runner.New(env, state)

	var results []formatResult
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return handleError(ErrInvalidInput, err, "")
		}
		changed, err := r.Reformat(path)
		if err != nil {
			return formatError(path, err)
		}
		results = append(results, formatResult{Path: path, Changed: changed})
	}

	if isJSONOutput() {
		outputSuccess(map[string]interface{}{
			"files":       results,
			"diagnostics": diagnosticsJSON(&state.Log),
		}, &Meta{Count: len(results)})
		return nil
	}

	for _, d := range state.Log.Diagnostics {
		fmt.Println(ui.Diagnostic(d))
	}
	for _, res := range results {
		if res.Changed {
			fmt.Println(ui.Successf("Formatted %s", ui.FilePath(res.Path)))
		} else {
			fmt.Println(ui.Infof("Already formatted %s", ui.FilePath(res.Path)))
		}
	}
	return nil
}

func formatError(path string, err error) error {
	var se *grammar.StructureError
	var re *grammar.RecordError
	switch {
	case errors.Is(err, os.ErrNotExist):
		return handleError(ErrFileNotFound, err, "")
	case errors.Is(err, document.ErrInvalidEncoding):
		return handleError(ErrFileReadError, fmt.Errorf("%s: %w", path, err), "Convert the file to UTF-8")
	case errors.Is(err, document.ErrUnconvertedBOM):
		return handleError(ErrFileReadError, fmt.Errorf("%s: %w", path, err),
			fmt.Sprintf("Declare %s for this directory in the flags file", flags.ConvertBOM))
	case errors.As(err, &se), errors.As(err, &re):
		return handleError(ErrParseFailed, fmt.Errorf("%s: %w", path, err), "")
	default:
		return handleError(ErrFileWriteError, fmt.Errorf("%s: %w", path, err), "")
	}
}
