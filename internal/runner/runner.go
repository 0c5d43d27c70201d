// Package runner drives a validation run over graphics locations.
//
// A run is a sequence of units of work: discovering the files of a
// location, loading and parsing each record file, validating each record,
// and scanning the location for files no record accounts for. Each unit is
// marked complete in the progress state as soon as it finishes and is
// signalled to the checkpointer, so a resumed run skips it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/aidanlsb/gfxcheck/internal/check"
	"github.com/aidanlsb/gfxcheck/internal/config"
	"github.com/aidanlsb/gfxcheck/internal/document"
	"github.com/aidanlsb/gfxcheck/internal/flags"
	"github.com/aidanlsb/gfxcheck/internal/progress"
	"github.com/aidanlsb/gfxcheck/internal/report"
)

// ErrInterrupted is returned by Run when its context is cancelled. The
// checkpoint has been flushed by then.
var ErrInterrupted = errors.New("run interrupted")

// Checkpointer receives unit-of-work signals.
type Checkpointer interface {
	UnitDone(u progress.Unit) error
	Flush() error
}

// StatusFunc is told which record file is being worked on, and how many
// record files of the location are finished.
type StatusFunc func(done, total int, current string)

// Env is everything a run needs besides its state.
type Env struct {
	Settings  *config.Settings
	Scope     *flags.Scope
	Validator *check.Validator

	// Checkpoint may be nil, in which case nothing is persisted.
	Checkpoint Checkpointer
	// Console also receives every diagnostic. It may be nil.
	Console report.Sink
	Status  StatusFunc
	Logger  *slog.Logger

	// DryRun leaves record files on disk untouched.
	DryRun bool
}

// NewEnv builds an environment from settings and a flag scope.
func NewEnv(settings *config.Settings, scope *flags.Scope, logger *slog.Logger) (*Env, error) {
	v, err := check.NewValidator(settings.ValidToPaths, settings.ImageExtensions)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Env{
		Settings:  settings,
		Scope:     scope,
		Validator: v,
		Logger:    logger,
	}, nil
}

// Runner carries one run.
type Runner struct {
	env   *Env
	state *progress.State
	sink  report.Sink
}

// New creates a runner that records into state.
func New(env *Env, state *progress.State) *Runner {
	return &Runner{
		env:   env,
		state: state,
		sink:  report.Tee(&state.Log, env.Console),
	}
}

// NewState creates the state of a fresh run. Locations that are not existing
// directories are reported and left out.
func NewState(settings *config.Settings, now time.Time) *progress.State {
	var roots []string
	var missing []string
	for _, loc := range settings.Locations {
		if st, err := os.Stat(loc); err == nil && st.IsDir() {
			roots = append(roots, loc)
			continue
		}
		missing = append(missing, loc)
	}

	state := progress.New(roots, now)
	for _, loc := range missing {
		state.Log.Add(report.Info, loc, "The location is not an existing directory and will be ignored.")
	}
	return state
}

// State returns the state the runner records into.
func (r *Runner) State() *progress.State {
	return r.state
}

// Run processes every unfinished unit of work of every location.
func (r *Runner) Run(ctx context.Context) error {
	for _, loc := range r.state.Locations {
		if err := r.location(ctx, loc); err != nil {
			if ctx.Err() != nil {
				return r.interrupted(ctx)
			}
			return err
		}
	}
	return nil
}

func (r *Runner) interrupted(ctx context.Context) error {
	if r.env.Checkpoint != nil {
		if err := r.env.Checkpoint.Flush(); err != nil {
			r.env.Logger.Error("failed to save checkpoint", "error", err)
			return fmt.Errorf("%w: %v (checkpoint not saved: %v)", ErrInterrupted, ctx.Err(), err)
		}
	}
	r.env.Logger.Info("run interrupted, progress saved")
	return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
}

func (r *Runner) location(ctx context.Context, loc *progress.Location) error {
	if !loc.FilesFound {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.discover(loc); err != nil {
			return err
		}
		loc.FilesFound = true
		r.env.Logger.Debug("files found", "location", loc.Root,
			"record_files", len(loc.Documents), "other_files", len(loc.OtherFiles))
		r.unit(progress.FilesFound)
	}

	if !loc.RecordsValidated {
		for i, doc := range loc.Documents {
			if doc.Validated {
				continue
			}
			if r.env.Status != nil {
				r.env.Status(i, len(loc.Documents), doc.Path)
			}
			if err := r.ProcessDocument(ctx, doc); err != nil {
				return err
			}
		}
		loc.RecordsValidated = true
	}

	if !loc.AnomaliesChecked {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.scanAnomalies(loc)
		loc.AnomaliesChecked = true
		r.unit(progress.AnomaliesChecked)
	}
	return nil
}

// ProcessDocument loads, parses and validates one record file, then saves it
// if it changed. Work already recorded in doc is skipped. It only returns an
// error when ctx is cancelled; problems with the file become diagnostics.
func (r *Runner) ProcessDocument(ctx context.Context, doc *document.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fl := r.env.Scope.Resolve(doc.Path)

	if !doc.Parsed {
		if !r.prepare(doc, fl) {
			r.fail(doc)
			r.unit(progress.DocumentValidated)
			return nil
		}
		r.unit(progress.DocumentLoaded)
	}

	for doc.Cursor < len(doc.Records) {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.env.Validator.ValidateRecord(doc, doc.Cursor, fl, r.sink)
		doc.Cursor++
		r.unit(progress.RecordValidated)
	}

	if fl.Has(flags.ReformatConfigFiles) {
		doc.Format(r.env.Settings.IndentString())
	}
	r.save(doc)

	doc.Validated = true
	if !r.env.DryRun {
		doc.Retire()
	}
	r.unit(progress.DocumentValidated)
	return nil
}

// prepare loads and parses doc. It reports false after a critical problem.
func (r *Runner) prepare(doc *document.Document, fl flags.Set) bool {
	if !doc.Loaded {
		if err := doc.Load(); err != nil {
			if errors.Is(err, document.ErrInvalidEncoding) {
				r.critical(doc, "Failed to load the config file. Make sure the file encoding is UTF-8.")
			} else {
				r.critical(doc, "Failed to read the config file: %v", err)
			}
			return false
		}
	}

	converted, err := doc.NormalizeEncoding(fl.Has(flags.ConvertBOM))
	if err != nil {
		r.critical(doc, "File encoding is UTF-8-BOM. You must convert the file to UTF-8 to validate it. "+
			"(To do this automatically, use the flag '%s'.)", flags.ConvertBOM)
		return false
	}
	if converted {
		r.sink.Report(diag(report.Info, doc, "File encoding is UTF-8-BOM. Saving as UTF-8..."))
		r.save(doc)
	}

	if err := doc.Parse(fl, r.sink); err != nil {
		r.critical(doc, "%s", sentence(err.Error()))
		return false
	}
	return true
}

// save persists doc unless this is a dry run.
func (r *Runner) save(doc *document.Document) {
	if r.env.DryRun {
		return
	}
	saved, err := doc.Save()
	if err != nil {
		r.critical(doc, "Failed to save the config file: %v", err)
		return
	}
	if saved {
		r.env.Logger.Debug("saved record file", "path", doc.Path)
		r.sink.Report(diag(report.Info, doc, "The changes made to the config file have been saved."))
	}
}

func (r *Runner) fail(doc *document.Document) {
	doc.Failed = true
	doc.Validated = true
	doc.Records = nil
	doc.Retire()
}

func (r *Runner) critical(doc *document.Document, format string, args ...interface{}) {
	r.sink.Report(diag(report.Critical, doc, fmt.Sprintf(format, args...)))
}

func (r *Runner) unit(u progress.Unit) {
	if r.env.Checkpoint == nil {
		return
	}
	if err := r.env.Checkpoint.UnitDone(u); err != nil {
		r.env.Logger.Warn("failed to save checkpoint", "unit", u.String(), "error", err)
	}
}

func diag(sev report.Severity, doc *document.Document, msg string) report.Diagnostic {
	return report.Diagnostic{Severity: sev, Path: doc.Path, Message: msg}
}

// sentence capitalizes the first letter of an error message.
func sentence(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + s[size:]
}
