// Package config handles gfxcheck settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the settings file looked up in the working directory.
const FileName = "gfxcheck.toml"

// Defaults for optional settings.
const (
	DefaultRecordFileName     = "config.xml"
	DefaultFlagsFile          = "flags.txt"
	DefaultCheckpointDir      = "progress"
	DefaultLogDir             = "logs"
	DefaultHistoryFile        = "history.db"
	DefaultCheckpointInterval = 10 * time.Second
)

// ErrNotFound is returned when no settings file exists.
var ErrNotFound = errors.New("settings file not found")

// Settings configures a validation run.
type Settings struct {
	// Locations are the graphics locations to validate, in order.
	Locations []string `toml:"locations"`

	// ImageExtensions are the recognised image file extensions, without dot.
	ImageExtensions []string `toml:"image_extensions"`

	// ValidToPaths are the destination templates; "{id}" marks the identifier.
	ValidToPaths []string `toml:"valid_to_paths"`

	// IgnoredFileNames are skipped during discovery.
	IgnoredFileNames []string `toml:"ignored_file_names"`

	RecordFileName string `toml:"record_file_name"`

	// FlagsFile, CheckpointDir, LogDir and HistoryFile are relative to the
	// settings file unless absolute.
	FlagsFile     string `toml:"flags_file"`
	CheckpointDir string `toml:"checkpoint_dir"`
	LogDir        string `toml:"log_dir"`
	HistoryFile   string `toml:"history_file"`

	CheckpointInterval Duration `toml:"checkpoint_interval"`

	Format FormatConfig `toml:"format"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui"`

	// path is the file the settings were loaded from.
	path string
}

// FormatConfig controls how record files are rewritten.
type FormatConfig struct {
	Indent Indent `toml:"indent"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output and markdown rendering.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent"`
}

// Indent is the indentation unit of reformatted record files. In TOML it is
// either a string or a number of spaces.
type Indent string

// UnmarshalTOML implements toml.Unmarshaler.
func (i *Indent) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		*i = Indent(val)
	case int64:
		if val < 0 {
			return fmt.Errorf("indent must not be negative, got %d", val)
		}
		*i = Indent(strings.Repeat(" ", int(val)))
	default:
		return fmt.Errorf("indent must be a string or a number of spaces, got %T", v)
	}
	return nil
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns settings with every optional field set.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.RecordFileName == "" {
		s.RecordFileName = DefaultRecordFileName
	}
	if s.FlagsFile == "" {
		s.FlagsFile = DefaultFlagsFile
	}
	if s.CheckpointDir == "" {
		s.CheckpointDir = DefaultCheckpointDir
	}
	if s.LogDir == "" {
		s.LogDir = DefaultLogDir
	}
	if s.HistoryFile == "" {
		s.HistoryFile = DefaultHistoryFile
	}
	if s.CheckpointInterval.Duration <= 0 {
		s.CheckpointInterval.Duration = DefaultCheckpointInterval
	}
	if s.ImageExtensions == nil {
		s.ImageExtensions = []string{"png", "dds", "tga", "jpg", "bmp"}
	}
}

// Load loads settings from path, or from DefaultPath when path is empty.
func Load(path string) (*Settings, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return LoadFrom(path)
}

// LoadFrom loads settings from a specific path.
func LoadFrom(path string) (*Settings, error) {
	var s Settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	s.applyDefaults()
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s.path = path
	return &s, nil
}

// DefaultPath returns the settings file path: ./gfxcheck.toml when present,
// else the per-user file under the OS config directory.
func DefaultPath() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "gfxcheck", "settings.toml")
	}
	return FileName
}

// Path returns the file the settings were loaded from.
func (s *Settings) Path() string {
	return s.path
}

// Validate reports settings a run cannot work without.
func (s *Settings) Validate() error {
	var problems []string
	if len(s.Locations) == 0 {
		problems = append(problems, "no locations configured")
	}
	if len(s.ValidToPaths) == 0 {
		problems = append(problems, "no valid_to_paths configured")
	}
	if len(s.ImageExtensions) == 0 {
		problems = append(problems, "no image_extensions configured")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Resolve returns p relative to the settings file directory unless it is
// absolute.
func (s *Settings) Resolve(p string) string {
	p = filepath.FromSlash(strings.TrimSpace(p))
	if filepath.IsAbs(p) || s.path == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(filepath.Dir(s.path), p)
}

// FlagsPath returns the resolved flag scope file.
func (s *Settings) FlagsPath() string { return s.Resolve(s.FlagsFile) }

// CheckpointPath returns the resolved checkpoint directory.
func (s *Settings) CheckpointPath() string { return s.Resolve(s.CheckpointDir) }

// LogPath returns the resolved text log directory.
func (s *Settings) LogPath() string { return s.Resolve(s.LogDir) }

// HistoryPath returns the resolved history database.
func (s *Settings) HistoryPath() string { return s.Resolve(s.HistoryFile) }

// IndentString returns the configured indent, or "" for the default.
func (s *Settings) IndentString() string {
	return string(s.Format.Indent)
}

// IsIgnored reports whether a file name is excluded from discovery.
func (s *Settings) IsIgnored(name string) bool {
	for _, ignored := range s.IgnoredFileNames {
		if ignored == name {
			return true
		}
	}
	return false
}
