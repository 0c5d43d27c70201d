package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	goslug "github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// SeparatorWidth is the width of the rule between log sections.
const SeparatorWidth = 100

// Separator returns the rule used between log sections.
func Separator() string {
	return strings.Repeat("-", SeparatorWidth)
}

// RenderText renders the log as the plain-text end-of-run report: one
// section per non-empty severity, most severe first.
func RenderText(l *Log) string {
	var b strings.Builder
	sep := Separator()
	for _, sev := range Severities {
		entries := l.BySeverity(sev)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s\n%s\n%s\n", sep, sev, sep)
		for _, d := range entries {
			b.WriteString(d.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// RenderMarkdown renders a markdown summary of the log: a count table
// followed by one section per non-empty severity.
func RenderMarkdown(title string, l *Log) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	counts := l.Counts()
	b.WriteString("| Severity | Count |\n|---|---|\n")
	for _, sev := range Severities {
		fmt.Fprintf(&b, "| %s | %d |\n", sev, counts[sev])
	}

	for _, sev := range Severities {
		entries := l.BySeverity(sev)
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", sev)
		for _, d := range entries {
			fmt.Fprintf(&b, "- %s\n", escapeMarkdown(d.String()))
		}
	}
	return b.String()
}

// RenderHTML converts the markdown summary to a standalone HTML fragment.
func RenderHTML(title string, l *Log) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(title, l)), &buf); err != nil {
		return "", fmt.Errorf("render report html: %w", err)
	}
	return buf.String(), nil
}

// LogFileName returns the file name of the text report for a run started at t.
func LogFileName(t time.Time) string {
	return goslug.Make(t.Format("2006-01-02 15.04.05")) + ".txt"
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"<", "&lt;",
	">", "&gt;",
	"|", `\|`,
	"[", `\[`,
	"]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
