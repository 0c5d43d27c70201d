// Package progress holds the state of a validation run: every discovered
// record file and its records, the files that are not record files, the
// completion of each unit of work, and the diagnostics reported so far.
//
// The state is what gets checkpointed. Restoring it and continuing skips
// every unit already marked complete.
package progress

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/aidanlsb/gfxcheck/internal/document"
	"github.com/aidanlsb/gfxcheck/internal/report"
)

// Version is the layout version of State. Snapshots of another version are
// not resumed.
const Version = 1

// Unit is a kind of completed work.
type Unit int

const (
	FilesFound Unit = iota
	DocumentLoaded
	RecordValidated
	DocumentValidated
	AnomaliesChecked
)

func (u Unit) String() string {
	switch u {
	case FilesFound:
		return "files-found"
	case DocumentLoaded:
		return "document-loaded"
	case RecordValidated:
		return "record-validated"
	case DocumentValidated:
		return "document-validated"
	case AnomaliesChecked:
		return "anomalies-checked"
	default:
		return "unknown"
	}
}

// State is the full state of one run.
type State struct {
	Version   int         `yaml:"version"`
	RunID     string      `yaml:"run_id"`
	StartedAt time.Time   `yaml:"started_at"`
	Locations []*Location `yaml:"locations"`
	Log       report.Log  `yaml:"log"`
}

// Location is one graphics location.
type Location struct {
	Root string `yaml:"root"`

	// Documents are the record files under Root in discovery order.
	Documents []*document.Document `yaml:"documents,omitempty"`
	// OtherFiles are all other files under Root, sorted.
	OtherFiles []string `yaml:"other_files,omitempty"`

	FilesFound       bool `yaml:"files_found"`
	RecordsValidated bool `yaml:"records_validated"`
	AnomaliesChecked bool `yaml:"anomalies_checked"`
}

// New creates the state of a fresh run over roots.
func New(roots []string, now time.Time) *State {
	s := &State{
		Version:   Version,
		RunID:     uuid.NewString(),
		StartedAt: now,
	}
	for _, root := range roots {
		s.Locations = append(s.Locations, &Location{Root: filepath.Clean(root)})
	}
	return s
}

// Relink restores the back-references a decoded state lacks.
func (s *State) Relink() {
	for _, loc := range s.Locations {
		for _, doc := range loc.Documents {
			doc.Relink()
		}
	}
}

// Done reports whether every location is finished.
func (s *State) Done() bool {
	for _, loc := range s.Locations {
		if !loc.Done() {
			return false
		}
	}
	return true
}

// Done reports whether all work for the location is finished.
func (l *Location) Done() bool {
	return l.FilesFound && l.RecordsValidated && l.AnomaliesChecked
}

// SourcePaths returns the source paths of every record in the location.
func (l *Location) SourcePaths() map[string]struct{} {
	paths := make(map[string]struct{})
	for _, doc := range l.Documents {
		for _, p := range doc.SourcePaths() {
			paths[p] = struct{}{}
		}
	}
	return paths
}

// Stats summarizes a state.
type Stats struct {
	Locations          int `json:"locations"`
	Documents          int `json:"record_files"`
	DocumentsValidated int `json:"record_files_validated"`
	Records            int `json:"records"`
	RecordsValidated   int `json:"records_validated"`
	OtherFiles         int `json:"other_files"`
}

// Stats counts the work found and finished so far.
func (s *State) Stats() Stats {
	var st Stats
	st.Locations = len(s.Locations)
	for _, loc := range s.Locations {
		st.Documents += len(loc.Documents)
		st.OtherFiles += len(loc.OtherFiles)
		for _, doc := range loc.Documents {
			if doc.Validated {
				st.DocumentsValidated++
			}
			st.Records += len(doc.Records)
			for _, r := range doc.Records {
				if r.Validated {
					st.RecordsValidated++
				}
			}
		}
	}
	return st
}
