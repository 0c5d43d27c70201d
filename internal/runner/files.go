package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aidanlsb/gfxcheck/internal/atomicfile"
	"github.com/aidanlsb/gfxcheck/internal/check"
	"github.com/aidanlsb/gfxcheck/internal/config"
	"github.com/aidanlsb/gfxcheck/internal/document"
	"github.com/aidanlsb/gfxcheck/internal/flags"
	"github.com/aidanlsb/gfxcheck/internal/progress"
	"github.com/aidanlsb/gfxcheck/internal/report"
)

// ErrRecordFileExists is returned by Generate when the target record file
// already exists and overwriting was not requested.
var ErrRecordFileExists = errors.New("record file already exists")

// Reformat rewrites one record file in canonical form. It reports whether
// the file changed.
func (r *Runner) Reformat(path string) (bool, error) {
	doc := document.New(path)
	if err := doc.Load(); err != nil {
		return false, err
	}
	fl := r.env.Scope.Resolve(path)
	if _, err := doc.NormalizeEncoding(fl.Has(flags.ConvertBOM)); err != nil {
		return false, err
	}
	if err := doc.Parse(fl, r.sink); err != nil {
		return false, err
	}
	doc.Format(r.env.Settings.IndentString())
	return doc.Save()
}

// Generate writes a record file mapping every numbered file in dir to
// template, with the identifier substituted. Both booleans are declared
// false. It returns the record file path and the number of records.
func Generate(dir, template string, settings *config.Settings, overwrite bool) (string, int, error) {
	path := filepath.Join(dir, settings.RecordFileName)
	if _, err := os.Stat(path); err == nil && !overwrite {
		return "", 0, fmt.Errorf("%w: %s", ErrRecordFileExists, path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("read folder: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if !isNumber(stem) || seen[stem] {
			continue
		}
		seen[stem] = true
		ids = append(ids, stem)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseUint(ids[i], 10, 64)
		b, _ := strconv.ParseUint(ids[j], 10, 64)
		if a != b {
			return a < b
		}
		return ids[i] < ids[j]
	})

	doc := document.New(path)
	doc.Booleans = document.Booleans{Preload: document.False, Amap: document.False}
	for _, id := range ids {
		doc.Add(id, strings.ReplaceAll(template, check.Placeholder, id))
	}
	doc.Format(settings.IndentString())

	if err := atomicfile.WriteString(path, doc.Text, 0o644); err != nil {
		return "", 0, fmt.Errorf("write record file: %w", err)
	}
	return path, len(ids), nil
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// WriteTextLog writes the run's diagnostics to a text file in dir, named
// after the run's start time. It returns the file path.
func WriteTextLog(dir string, state *progress.State) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, report.LogFileName(state.StartedAt))
	if err := atomicfile.WriteString(path, report.RenderText(&state.Log), 0o644); err != nil {
		return "", fmt.Errorf("write log: %w", err)
	}
	return path, nil
}
