package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// ReportMargin is the left margin of a report rendered for the terminal.
const ReportMargin = 2

// RenderReport renders a run report in markdown (a title, a table of counts
// per severity and one list of findings per severity) for a terminal of the
// given width.
func RenderReport(md string, width int) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(reportStyle()),
		glamour.WithWordWrap(width-ReportMargin),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

// reportStyle styles the few elements a report uses. The title takes the
// accent color and severity sections are set apart by a rule.
func reportStyle() ansi.StyleConfig {
	muted := ptr("8")
	var accent *string
	if color, ok := AccentColor(); ok {
		accent = ptr(color)
	}

	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{BlockPrefix: "\n", BlockSuffix: "\n"},
			Margin:         ptr[uint](ReportMargin),
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{BlockSuffix: "\n", Bold: ptr(true)},
		},
		H1: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: accent},
		},
		H2: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Prefix: "── ", Suffix: " ──"},
		},
		Paragraph: ansi.StyleBlock{},
		List: ansi.StyleList{LevelIndent: 2},
		Item: ansi.StylePrimitive{BlockPrefix: "• "},
		Table: ansi.StyleTable{
			CenterSeparator: ptr("┼"),
			ColumnSeparator: ptr("│"),
			RowSeparator:    ptr("─"),
		},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: muted},
		},
		Strong: ansi.StylePrimitive{Bold: ptr(true)},
		Emph:   ansi.StylePrimitive{Italic: ptr(true)},
	}
}

func ptr[T any](v T) *T { return &v }
