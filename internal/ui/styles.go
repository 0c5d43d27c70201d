package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aidanlsb/gfxcheck/internal/report"
)

// Color palette
// - Default (white/black): Primary text
// - Accent (soft purple #A78BFA): Highlights, paths
// - Muted (gray): Secondary info, counts
// - Severities are told apart by symbol first; color only reinforces it

const defaultAccent = "#A78BFA"

var accentColor = defaultAccent

var (
	// Accent style for file paths and highlights
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultAccent))

	// Muted style for secondary info and hints
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	// Bold style for emphasis
	Bold = lipgloss.NewStyle().Bold(true)

	// AccentBold combines accent color with bold
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultAccent)).Bold(true)
)

var severityStyles = map[report.Severity]lipgloss.Style{
	report.Critical:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true),
	report.Important: lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387")),
	report.Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
	report.Info:      Muted,
}

// SeverityStyle returns the style used for a severity label.
func SeverityStyle(sev report.Severity) lipgloss.Style {
	if s, ok := severityStyles[sev]; ok {
		return s
	}
	return Bold
}

// ConfigureTheme sets the accent color from a settings value. Empty, "none",
// "off" and "default" disable the accent color.
func ConfigureTheme(accent string) {
	color, ok := normalizeAccentColor(accent)
	if !ok {
		accentColor = ""
		Accent = lipgloss.NewStyle()
		AccentBold = lipgloss.NewStyle().Bold(true)
		return
	}
	accentColor = color
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// AccentColor returns the configured accent color, if any.
func AccentColor() (string, bool) {
	return accentColor, accentColor != ""
}

// normalizeAccentColor accepts ANSI codes 0-255 and #RGB or #RRGGBB hex.
func normalizeAccentColor(value string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "", "none", "off", "default":
		return "", false
	}

	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		if len(hex) == 3 {
			hex = fmt.Sprintf("%c%c%c%c%c%c", hex[0], hex[0], hex[1], hex[1], hex[2], hex[2])
		}
		if len(hex) != 6 {
			return "", false
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return "", false
		}
		return "#" + hex, true
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 255 {
		return "", false
	}
	return strconv.Itoa(n), true
}
