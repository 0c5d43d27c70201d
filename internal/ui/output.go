package ui

import (
	"fmt"
	"strings"

	"github.com/aidanlsb/gfxcheck/internal/report"
)

// Unicode symbols for status indicators
const (
	SymbolSuccess   = "✓"
	SymbolError     = "✗"
	SymbolImportant = "!"
	SymbolWarning   = "⚠"
	SymbolInfo      = "ℹ"
)

// Success returns a success message with checkmark symbol
func Success(msg string) string {
	return fmt.Sprintf("%s %s", SymbolSuccess, msg)
}

// Successf returns a formatted success message with checkmark symbol
func Successf(format string, args ...interface{}) string {
	return Success(fmt.Sprintf(format, args...))
}

// Error returns an error message with X symbol
func Error(msg string) string {
	return fmt.Sprintf("%s %s", SymbolError, msg)
}

// Errorf returns a formatted error message with X symbol
func Errorf(format string, args ...interface{}) string {
	return Error(fmt.Sprintf(format, args...))
}

// Warning returns a warning message with warning symbol
func Warning(msg string) string {
	return fmt.Sprintf("%s %s", SymbolWarning, msg)
}

// Warningf returns a formatted warning message with warning symbol
func Warningf(format string, args ...interface{}) string {
	return Warning(fmt.Sprintf(format, args...))
}

// Info returns an info message with info symbol
func Info(msg string) string {
	return fmt.Sprintf("%s %s", SymbolInfo, msg)
}

// Infof returns a formatted info message with info symbol
func Infof(format string, args ...interface{}) string {
	return Info(fmt.Sprintf(format, args...))
}

// Header returns a styled section header
func Header(msg string) string {
	return Bold.Render(msg)
}

// FilePath returns an accent-styled file path
func FilePath(path string) string {
	return Accent.Render(path)
}

// Hint returns muted hint text
func Hint(msg string) string {
	return Muted.Render(msg)
}

// SeveritySymbol returns the symbol shown in front of a diagnostic.
func SeveritySymbol(sev report.Severity) string {
	switch sev {
	case report.Critical:
		return SymbolError
	case report.Important:
		return SymbolImportant
	case report.Warning:
		return SymbolWarning
	default:
		return SymbolInfo
	}
}

// Diagnostic renders one diagnostic on a single line.
func Diagnostic(d report.Diagnostic) string {
	label := SeverityStyle(d.Severity).Render(fmt.Sprintf("%s %-9s", SeveritySymbol(d.Severity), d.Severity))
	if d.Path == "" {
		return fmt.Sprintf("%s %s", label, d.Message)
	}
	return fmt.Sprintf("%s %s %s", label, FilePath(d.Path), d.Message)
}

// Counts returns a compact summary like "1 critical, 3 warnings".
func Counts(counts map[report.Severity]int) string {
	var parts []string
	for _, sev := range report.Severities {
		n := counts[sev]
		if n == 0 {
			continue
		}
		label := strings.ToLower(sev.String())
		if sev == report.Warning {
			label = pluralize(label, n)
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	if len(parts) == 0 {
		return "no findings"
	}
	return strings.Join(parts, ", ")
}

// pluralize returns singular or plural form based on count
func pluralize(singular string, count int) string {
	if count == 1 {
		return singular
	}
	return singular + "s"
}
