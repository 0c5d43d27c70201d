package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/gfxcheck/internal/checkpoint"
	"github.com/aidanlsb/gfxcheck/internal/config"
	"github.com/aidanlsb/gfxcheck/internal/flags"
	"github.com/aidanlsb/gfxcheck/internal/history"
	"github.com/aidanlsb/gfxcheck/internal/progress"
	"github.com/aidanlsb/gfxcheck/internal/report"
	"github.com/aidanlsb/gfxcheck/internal/runner"
	"github.com/aidanlsb/gfxcheck/internal/ui"
)

var (
	runFresh     bool
	runStrict    bool
	runThreshold string
	runNoHistory bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate every configured graphics location",
	Long: `Validate every record file under the configured graphics locations, then scan
each location for files no record accounts for.

Progress is checkpointed while the run goes. If a checkpoint from an earlier,
interrupted run exists, the run resumes from it; pass --fresh to discard it
and start over. When the run finishes, a text log is written to the log
directory, the run is archived in the history database and the checkpoint is
removed.

Examples:
  gfxcheck run
  gfxcheck run --show info
  gfxcheck run --fresh --strict
  gfxcheck run --json`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "Discard any saved progress and start a new run")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "Exit with an error when critical or important findings were reported")
	runCmd.Flags().StringVar(&runThreshold, "show", "warning", "Least severe findings printed while running: critical, important, warning or info")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not archive the run in the history database")
	rootCmd.AddCommand(runCmd)
}

type runResult struct {
	RunID     string         `json:"run_id"`
	Resumed   bool           `json:"resumed"`
	StartedAt time.Time      `json:"started_at"`
	Stats     progress.Stats `json:"stats"`
	Counts    map[string]int `json:"counts"`
	LogFile   string         `json:"log_file,omitempty"`
	// Diagnostics holds every finding of the run, including those of the
	// interrupted part of a resumed run.
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

func runRun(cmd *cobra.Command, args []string) error {
	start := time.Now()
	s := getSettings()
	log := getLogger()

	if err := s.Validate(); err != nil {
		return handleError(ErrSettingsInvalid, err, "Edit the settings file: "+s.Path())
	}
	threshold, err := report.ParseSeverity(runThreshold)
	if err != nil {
		return handleError(ErrInvalidInput, err, "Use one of: critical, important, warning, info")
	}

	scope, err := flags.Load(s.FlagsPath())
	if err != nil {
		return handleError(ErrFlagsInvalid, err, "Fix the flags file: "+s.FlagsPath())
	}
	env, err := runner.NewEnv(s, scope, log)
	if err != nil {
		return handleError(ErrSettingsInvalid, err, "")
	}

	store := checkpoint.NewStore(s.CheckpointPath(), log)
	if runFresh {
		if err := store.Discard(); err != nil {
			return handleError(ErrCheckpointError, err, "")
		}
	}
	state, resumed, err := store.Load()
	if err != nil {
		return handleError(ErrCheckpointError, err, "Run 'gfxcheck reset' to discard the saved progress")
	}

	var warnings []Warning
	if resumed {
		st := state.Stats()
		log.Info("resuming run", "run", state.RunID, "documents", st.DocumentsValidated, "of", st.Documents)
		warnings = append(warnings, Warning{
			Code:    WarnCheckpointResumed,
			Message: fmt.Sprintf("resumed run started %s", state.StartedAt.Format(time.RFC3339)),
			Ref:     state.RunID,
		})
	} else {
		state = runner.NewState(s, start)
	}

	writer := checkpoint.NewWriter(store, state, s.CheckpointInterval.Duration)
	env.Checkpoint = writer

	var console *ui.Console
	if !isJSONOutput() {
		display := ui.NewDisplayContext()
		console = ui.NewConsole(os.Stdout, display, threshold)
		env.Console = console
		env.Status = console.Status
		if resumed {
			fmt.Println(ui.Infof("Resuming run started %s", state.StartedAt.Format("2006-01-02 15:04:05")))
		}
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := runner.New(env, state).Run(ctx)
	if console != nil {
		console.Done()
	}
	if runErr != nil {
		if errors.Is(runErr, runner.ErrInterrupted) {
			if isJSONOutput() {
				outputError(ErrRunInterrupted, runErr.Error(), nil, "Run 'gfxcheck run' again to resume")
			}
			return runErr
		}
		return handleError(ErrInternal, runErr, "")
	}

	result := runResult{
		RunID:     state.RunID,
		Resumed:   resumed,
		StartedAt: state.StartedAt,
		Stats:     state.Stats(),
		Counts:    countsJSON(state.Log.Counts()),
	}

	if path, err := runner.WriteTextLog(s.LogPath(), state); err != nil {
		log.Warn("failed to write text log", "error", err)
		warnings = append(warnings, Warning{Code: WarnLogNotWritten, Message: err.Error()})
	} else {
		result.LogFile = path
	}

	if !runNoHistory {
		if err := archiveRun(s, state); err != nil {
			log.Warn("failed to archive run", "error", err)
			warnings = append(warnings, Warning{Code: WarnHistoryNotSaved, Message: err.Error()})
		}
	}

	if err := writer.Discard(); err != nil {
		log.Warn("failed to remove checkpoint", "error", err)
		warnings = append(warnings, Warning{Code: WarnCheckpointKept, Message: err.Error()})
	}

	if isJSONOutput() {
		result.Diagnostics = diagnosticsJSON(&state.Log)
		outputSuccessWithWarnings(result, warnings, &Meta{
			Count:     state.Log.Len(),
			ElapsedMs: time.Since(start).Milliseconds(),
		})
	} else {
		printRunSummary(result, warnings)
	}

	if runStrict {
		counts := state.Log.Counts()
		if n := counts[report.Critical] + counts[report.Important]; n > 0 {
			return fmt.Errorf("%d critical or important findings", n)
		}
	}
	return nil
}

func archiveRun(s *config.Settings, state *progress.State) error {
	db, err := history.Open(s.HistoryPath())
	if err != nil {
		return err
	}
	defer db.Close()
	return db.RecordRun(state, time.Now(), s.Path())
}

func printRunSummary(result runResult, warnings []Warning) {
	counts := make(map[report.Severity]int, len(result.Counts))
	for _, sev := range report.Severities {
		counts[sev] = result.Counts[sev.String()]
	}

	fmt.Println()
	fmt.Println(ui.Header("Run " + shortID(result.RunID)))
	fmt.Printf("  %d record files, %d records, %d other files in %d locations\n",
		result.Stats.Documents, result.Stats.Records, result.Stats.OtherFiles, result.Stats.Locations)
	fmt.Printf("  %s\n", ui.Counts(counts))
	if result.LogFile != "" {
		fmt.Printf("  log: %s\n", ui.FilePath(result.LogFile))
	}
	for _, w := range warnings {
		if w.Code == WarnCheckpointResumed {
			continue
		}
		fmt.Println(ui.Warning(w.Message))
	}
}

// shortID abbreviates a run ID for display. Any unique prefix is accepted
// by 'history show'.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
