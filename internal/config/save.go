package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/gfxcheck/internal/atomicfile"
)

const header = `# gfxcheck settings
#
# locations          graphics locations to validate, in order
# image_extensions   recognised image extensions, without dot
# valid_to_paths     destination templates; {id} marks the identifier
# ignored_file_names file names skipped while scanning
#
# flags_file, checkpoint_dir, log_dir and history_file are relative to this
# file unless absolute. [format] indent is a string or a number of spaces.

`

type persistedSettings struct {
	Locations          []string          `toml:"locations"`
	ImageExtensions    []string          `toml:"image_extensions"`
	ValidToPaths       []string          `toml:"valid_to_paths"`
	IgnoredFileNames   []string          `toml:"ignored_file_names"`
	RecordFileName     string            `toml:"record_file_name"`
	FlagsFile          string            `toml:"flags_file"`
	CheckpointDir      string            `toml:"checkpoint_dir"`
	LogDir             string            `toml:"log_dir"`
	HistoryFile        string            `toml:"history_file"`
	CheckpointInterval Duration          `toml:"checkpoint_interval"`
	Format             persistedFormat   `toml:"format"`
	UI                 *persistedUIPrefs `toml:"ui,omitempty"`
}

type persistedFormat struct {
	Indent string `toml:"indent"`
}

type persistedUIPrefs struct {
	Accent string `toml:"accent"`
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// SaveTo writes settings to path atomically, preceded by a short comment
// header.
func SaveTo(path string, s *Settings) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("settings path is required")
	}
	if s == nil {
		s = Default()
	}
	s.applyDefaults()

	out := persistedSettings{
		Locations:          nonNil(s.Locations),
		ImageExtensions:    nonNil(s.ImageExtensions),
		ValidToPaths:       nonNil(s.ValidToPaths),
		IgnoredFileNames:   nonNil(s.IgnoredFileNames),
		RecordFileName:     s.RecordFileName,
		FlagsFile:          s.FlagsFile,
		CheckpointDir:      s.CheckpointDir,
		LogDir:             s.LogDir,
		HistoryFile:        s.HistoryFile,
		CheckpointInterval: s.CheckpointInterval,
		Format:             persistedFormat{Indent: s.IndentString()},
	}
	if accent := strings.TrimSpace(s.UI.Accent); accent != "" {
		out.UI = &persistedUIPrefs{Accent: accent}
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", path, err)
	}
	return nil
}
