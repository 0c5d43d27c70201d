// Package checkpoint persists run state so an interrupted run can resume.
//
// Snapshots alternate between two slot files. A save always replaces the
// slot that does not hold the newest good snapshot, so a crash during a save
// costs at most one interval of work.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/gfxcheck/internal/atomicfile"
	"github.com/aidanlsb/gfxcheck/internal/progress"
)

const (
	// Format identifies snapshot files.
	Format = "gfxcheck-progress"
	// EnvelopeVersion is the current envelope layout.
	EnvelopeVersion = 1
)

// SlotNames are the file names of the two snapshot slots.
var SlotNames = []string{"1.snapshot", "2.snapshot"}

var (
	// ErrCorrupt marks a slot that cannot be trusted.
	ErrCorrupt = errors.New("checkpoint is corrupt")
)

type envelope struct {
	Format   string    `yaml:"format"`
	Version  int       `yaml:"version"`
	Sequence int64     `yaml:"sequence"`
	SavedAt  time.Time `yaml:"saved_at"`
	Checksum string    `yaml:"checksum"`
	Payload  string    `yaml:"payload"`
}

// Store reads and writes snapshots in one directory.
//
// After the first Load or Save a store remembers which slot it wrote last,
// so later saves do not read the slots back. Only one store should write a
// directory at a time.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	known   bool
	newest  int // slot index of the newest valid snapshot, or -1
	lastSeq int64
}

// NewStore creates a store over dir. The directory is created on first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{dir: dir, logger: logger, now: time.Now}
}

// Dir returns the checkpoint directory.
func (s *Store) Dir() string {
	return s.dir
}

// slot describes what one slot file holds.
type slot struct {
	path    string
	exists  bool
	modTime time.Time
	env     *envelope
	state   *progress.State
	err     error
}

func (s *Store) inspect() []slot {
	slots := make([]slot, len(SlotNames))
	for i, name := range SlotNames {
		sl := slot{path: filepath.Join(s.dir, name)}
		if st, err := os.Stat(sl.path); err == nil {
			sl.exists = true
			sl.modTime = st.ModTime()
			sl.env, sl.state, sl.err = readSlot(sl.path)
		}
		slots[i] = sl
	}
	return slots
}

// newer reports whether a holds a later snapshot than b.
func newer(a, b slot) bool {
	if !a.modTime.Equal(b.modTime) {
		return a.modTime.After(b.modTime)
	}
	return a.env.Sequence > b.env.Sequence
}

// latest returns the index of the newest valid slot, or -1.
func latest(slots []slot) int {
	best := -1
	for i, sl := range slots {
		if !sl.exists || sl.err != nil {
			continue
		}
		if best < 0 || newer(sl, slots[best]) {
			best = i
		}
	}
	return best
}

// Load returns the newest valid snapshot. ok is false when there is none;
// corrupt slots are skipped.
func (s *Store) Load() (state *progress.State, ok bool, err error) {
	slots := s.inspect()
	for _, sl := range slots {
		if sl.exists && sl.err != nil {
			s.logger.Warn("skipping checkpoint slot", "path", sl.path, "error", sl.err)
		}
	}

	i := latest(slots)
	s.remember(slots, i)
	if i < 0 {
		return nil, false, nil
	}
	s.logger.Debug("loaded checkpoint", "path", slots[i].path, "sequence", slots[i].env.Sequence)
	return slots[i].state, true, nil
}

// Save writes state to the slot not holding the newest valid snapshot.
func (s *Store) Save(state *progress.State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	if !s.known {
		slots := s.inspect()
		s.remember(slots, latest(slots))
	}
	target := 0
	seq := s.lastSeq + 1
	if s.newest >= 0 {
		target = 1 - s.newest
	}

	payload, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	env := envelope{
		Format:   Format,
		Version:  EnvelopeVersion,
		Sequence: seq,
		SavedAt:  s.now().UTC(),
		Checksum: checksum(payload),
		Payload:  string(payload),
	}
	data, err := yaml.Marshal(&env)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	path := filepath.Join(s.dir, SlotNames[target])
	if err := atomicfile.WriteFile(path, data, 0o644); err != nil {
		// The target may be half replaced; read the slots again next time.
		s.known = false
		return fmt.Errorf("write checkpoint %s: %w", path, err)
	}
	s.newest, s.lastSeq = target, seq
	s.logger.Debug("saved checkpoint", "path", path, "sequence", seq)
	return nil
}

// Discard removes both slots.
func (s *Store) Discard() error {
	s.known = false
	for _, name := range SlotNames {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove checkpoint %s: %w", path, err)
		}
	}
	return nil
}

// Exists reports whether any slot file is present.
func (s *Store) Exists() bool {
	for _, sl := range s.inspect() {
		if sl.exists {
			return true
		}
	}
	return false
}

func (s *Store) remember(slots []slot, newest int) {
	s.known, s.newest, s.lastSeq = true, newest, 0
	if newest >= 0 {
		s.lastSeq = slots[newest].env.Sequence
	}
}

func readSlot(path string) (*envelope, *progress.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var env envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	switch {
	case env.Format != Format:
		return nil, nil, fmt.Errorf("%w: unexpected format %q", ErrCorrupt, env.Format)
	case env.Version != EnvelopeVersion:
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, env.Version)
	case env.Checksum != checksum([]byte(env.Payload)):
		return nil, nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var state progress.State
	if err := yaml.Unmarshal([]byte(env.Payload), &state); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if state.Version != progress.Version {
		return nil, nil, fmt.Errorf("%w: unsupported progress version %d", ErrCorrupt, state.Version)
	}
	state.Relink()
	return &env, &state, nil
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
