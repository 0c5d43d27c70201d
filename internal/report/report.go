// Package report accumulates validation diagnostics for end-of-run reporting.
package report

import (
	"fmt"
	"strings"
)

// Severity indicates how serious a diagnostic is.
type Severity int

const (
	// Critical stops processing of one record file.
	Critical Severity = iota
	// Important marks a record that is kept but broken.
	Important
	// Warning is informational; no state changes.
	Warning
	// Info reports a successful automatic remediation.
	Info
)

// Severities lists every severity in reporting order.
var Severities = []Severity{Critical, Important, Warning, Info}

func (s Severity) String() string {
	switch s {
	case Critical:
		return "CRITICAL"
	case Important:
		return "IMPORTANT"
	case Warning:
		return "WARNING"
	case Info:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity parses the output of Severity.String (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range Severities {
		if strings.EqualFold(sev.String(), strings.TrimSpace(s)) {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Diagnostic is one reported finding.
type Diagnostic struct {
	Severity Severity `yaml:"severity" json:"severity"`
	Path     string   `yaml:"path" json:"path"`
	Message  string   `yaml:"message" json:"message"`
}

// String renders the diagnostic the way it appears in the text log.
func (d Diagnostic) String() string {
	if d.Path == "" {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Path, d.Message)
}

// Sink receives diagnostics as they are produced.
type Sink interface {
	Report(d Diagnostic)
}

// Log is an append-only list of diagnostics in the order they were raised.
// It is part of the progress snapshot, so a resumed run keeps what an
// interrupted run already reported.
type Log struct {
	Diagnostics []Diagnostic `yaml:"diagnostics"`
}

// Report appends d to the log.
func (l *Log) Report(d Diagnostic) {
	l.Diagnostics = append(l.Diagnostics, d)
}

// Add appends a diagnostic built from its parts.
func (l *Log) Add(sev Severity, path, format string, args ...interface{}) {
	l.Report(Diagnostic{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
}

// BySeverity returns the diagnostics with the given severity, in order.
func (l *Log) BySeverity(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range l.Diagnostics {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Counts returns the number of diagnostics per severity.
func (l *Log) Counts() map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, d := range l.Diagnostics {
		counts[d.Severity]++
	}
	return counts
}

// Len returns the total number of diagnostics.
func (l *Log) Len() int {
	return len(l.Diagnostics)
}

// Tee returns a sink that forwards every diagnostic to all given sinks.
// Nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return teeSink(live)
}

type teeSink []Sink

func (t teeSink) Report(d Diagnostic) {
	for _, s := range t {
		s.Report(d)
	}
}
