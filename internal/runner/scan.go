package runner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aidanlsb/gfxcheck/internal/atomicfile"
	"github.com/aidanlsb/gfxcheck/internal/document"
	"github.com/aidanlsb/gfxcheck/internal/flags"
	"github.com/aidanlsb/gfxcheck/internal/progress"
	"github.com/aidanlsb/gfxcheck/internal/report"
)

// discover walks the location and sorts its files into record files and
// everything else. Directories that cannot be read are logged and skipped.
func (r *Runner) discover(loc *progress.Location) error {
	settings := r.env.Settings
	loc.Documents = nil
	loc.OtherFiles = nil

	err := filepath.WalkDir(loc.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.env.Logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		switch {
		case settings.IsIgnored(name), atomicfile.IsTemp(name):
		case name == settings.RecordFileName:
			loc.Documents = append(loc.Documents, document.New(path))
		default:
			loc.OtherFiles = append(loc.OtherFiles, path)
		}
		return nil
	})
	sort.Strings(loc.OtherFiles)
	return err
}

// scanAnomalies reports files that are not recognised images, and images
// that no record of the location points at.
func (r *Runner) scanAnomalies(loc *progress.Location) {
	images := make(map[string]bool, len(r.env.Settings.ImageExtensions))
	for _, ext := range r.env.Settings.ImageExtensions {
		images[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	sources := loc.SourcePaths()

	for _, path := range loc.OtherFiles {
		fl := r.env.Scope.Resolve(path)
		ext := filepath.Ext(path)

		if !images[strings.ToLower(strings.TrimPrefix(ext, "."))] {
			if !fl.Has(flags.IgnoreNonImageFiles) {
				r.sink.Report(report.Diagnostic{Severity: report.Warning, Path: path, Message: "The file is not a recognised image."})
			}
			continue
		}

		if _, ok := sources[strings.TrimSuffix(path, ext)]; !ok && !fl.Has(flags.IgnoreMissingRecords) {
			r.sink.Report(report.Diagnostic{Severity: report.Warning, Path: path, Message: "No config record exists for the file."})
		}
	}
}
