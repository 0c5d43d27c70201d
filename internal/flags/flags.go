// Package flags resolves the behavior-modifying flags that apply to a path.
//
// Flags are declared in a flat scope file. A line holding a directory path
// opens a scope; every following flag line attaches to that scope. A flag
// applies to every path inside a directory that declares it, and the flags of
// all enclosing scopes are unioned.
package flags

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Flag is a named behavior toggle.
type Flag string

// Recognized flags. The identifiers are the spellings used in scope files.
const (
	ConvertBOM                    Flag = "CONVERT_UTF-8-BOM"
	DeleteDuplicateRecords        Flag = "DELETE_DUPLICATE_RECORDS"
	DeleteRecordsWithMissingImage Flag = "DELETE_RECORDS_WITH_MISSING_IMAGE"
	IgnoreMissingImages           Flag = "IGNORE_MISSING_IMAGES"
	IgnoreMissingRecords          Flag = "IGNORE_MISSING_RECORDS"
	IgnoreMultiUseImages          Flag = "IGNORE_MULTI_USE_IMAGES"
	IgnoreNonImageFiles           Flag = "IGNORE_NON-IMAGE_FILES"
	IgnoreNonMatchingIDs          Flag = "IGNORE_NON-MATCHING_IDS"
	ReformatConfigFiles           Flag = "REFORMAT_CONFIG_FILES"
)

var known = map[Flag]struct{}{
	ConvertBOM:                    {},
	DeleteDuplicateRecords:        {},
	DeleteRecordsWithMissingImage: {},
	IgnoreMissingImages:           {},
	IgnoreMissingRecords:          {},
	IgnoreMultiUseImages:          {},
	IgnoreNonImageFiles:           {},
	IgnoreNonMatchingIDs:          {},
	ReformatConfigFiles:           {},
}

// IsKnown reports whether name is one of the recognized flags.
func IsKnown(name string) bool {
	_, ok := known[Flag(name)]
	return ok
}

// All returns every recognized flag, sorted.
func All() []Flag {
	out := make([]Flag, 0, len(known))
	for f := range known {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Set is a set of flags.
type Set map[Flag]struct{}

// Has reports whether f is in the set.
func (s Set) Has(f Flag) bool {
	_, ok := s[f]
	return ok
}

// ErrNoScope is returned when a flag line appears before any directory line.
var ErrNoScope = errors.New("flag declared before any directory")

// ErrNotADirectory is returned for a non-flag line that is not an existing directory.
var ErrNotADirectory = errors.New("not a flag and not an existing directory")

// LineError locates a scope file error.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Scope maps directories to the flags declared for them.
type Scope struct {
	dirs map[string]Set
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{dirs: make(map[string]Set)}
}

// Declare attaches flags to dir.
func (s *Scope) Declare(dir string, fs ...Flag) {
	dir = cleanDir(dir)
	set, ok := s.dirs[dir]
	if !ok {
		set = make(Set)
		s.dirs[dir] = set
	}
	for _, f := range fs {
		set[f] = struct{}{}
	}
}

// Dirs returns the declared directories, sorted.
func (s *Scope) Dirs() []string {
	out := make([]string, 0, len(s.dirs))
	for d := range s.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the union of the flags of every declared directory that
// contains path (or is path).
func (s *Scope) Resolve(path string) Set {
	out := make(Set)
	if s == nil {
		return out
	}
	path = filepath.Clean(path)
	for dir, set := range s.dirs {
		if !within(path, dir) {
			continue
		}
		for f := range set {
			out[f] = struct{}{}
		}
	}
	return out
}

// Has reports whether f applies to path.
func (s *Scope) Has(f Flag, path string) bool {
	if s == nil {
		return false
	}
	path = filepath.Clean(path)
	for dir, set := range s.dirs {
		if set.Has(f) && within(path, dir) {
			return true
		}
	}
	return false
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return strings.HasPrefix(path, dir)
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

func cleanDir(dir string) string {
	return filepath.Clean(strings.TrimSpace(dir))
}

// DirExists is used by Parse to validate directory lines.
type DirExists func(path string) bool

// OSDirExists reports whether path is an existing directory.
func OSDirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// StripComment removes everything from the first '>' on a line.
func StripComment(line string) string {
	if i := strings.IndexByte(line, '>'); i >= 0 {
		return line[:i]
	}
	return line
}

// Parse reads a scope file. Errors are fatal configuration errors.
func Parse(r io.Reader, exists DirExists) (*Scope, error) {
	if exists == nil {
		exists = OSDirExists
	}

	scope := NewScope()
	current := ""
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(StripComment(scanner.Text()))
		if line == "" {
			continue
		}

		if IsKnown(line) {
			if current == "" {
				return nil, &LineError{Line: lineNo, Text: line, Err: ErrNoScope}
			}
			scope.Declare(current, Flag(line))
			continue
		}

		if !exists(line) {
			return nil, &LineError{Line: lineNo, Text: line, Err: ErrNotADirectory}
		}
		current = line
		scope.Declare(current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}
	return scope, nil
}

// Load reads the scope file at path. A missing file yields an empty scope.
func Load(path string) (*Scope, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewScope(), nil
		}
		return nil, fmt.Errorf("open flags file: %w", err)
	}
	defer f.Close()

	scope, err := Parse(f, OSDirExists)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scope, nil
}
