// Package check validates the records of a parsed record file.
package check

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/aidanlsb/gfxcheck/internal/document"
	"github.com/aidanlsb/gfxcheck/internal/flags"
	"github.com/aidanlsb/gfxcheck/internal/report"
)

// Placeholder marks the identifier in a destination template.
const Placeholder = "{id}"

// ErrNoTemplates is returned by NewValidator when no destination templates
// are configured.
var ErrNoTemplates = errors.New("no valid destination templates configured")

var (
	sourceIDPattern      = regexp.MustCompile(`(?:^|/)(\d+)$`)
	destinationIDPattern = regexp.MustCompile(`\d+`)
)

// Template is a destination path template such as
// "graphics/pictures/person/{id}/portrait".
type Template struct {
	Raw string

	// shape matches any single path segment in place of the placeholder.
	shape *regexp.Regexp
	// ids matches digits only in place of the placeholder.
	ids     *regexp.Regexp
	idsExpr string
}

// NewTemplate compiles a destination template. Everything except the
// placeholder is matched literally.
func NewTemplate(raw string) *Template {
	parts := strings.Split(raw, Placeholder)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	idsExpr := strings.Join(parts, "[0-9]+")
	return &Template{
		Raw:     raw,
		shape:   regexp.MustCompile(`^(?:` + strings.Join(parts, "[^/]+") + `)$`),
		ids:     regexp.MustCompile(`^(?:` + idsExpr + `)$`),
		idsExpr: idsExpr,
	}
}

// Validator runs the per-record checks.
type Validator struct {
	templates  []*Template
	extensions []string

	// Exists reports whether a file exists. Tests replace it.
	Exists func(path string) bool
}

// NewValidator creates a validator for the given destination templates and
// image extensions. Extensions are given without the leading dot.
func NewValidator(templates, extensions []string) (*Validator, error) {
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}
	v := &Validator{Exists: fileExists}
	for _, raw := range templates {
		v.templates = append(v.templates, NewTemplate(raw))
	}
	for _, ext := range extensions {
		v.extensions = append(v.extensions, strings.TrimPrefix(ext, "."))
	}
	return v, nil
}

// ValidateRecord checks the record at index in doc and marks it validated.
// A record without any image file is deleted from the document when the
// flags ask for it; ValidateRecord then reports true and runs no further
// checks, since the record no longer exists.
func (v *Validator) ValidateRecord(doc *document.Document, index int, fl flags.Set, sink report.Sink) (deleted bool) {
	rec := doc.Records[index]
	subject := fmt.Sprintf(`Record from="%s" to="%s"`, rec.From, rec.To)
	diag := func(sev report.Severity, format string, args ...interface{}) {
		sink.Report(report.Diagnostic{
			Severity: sev,
			Path:     doc.Path,
			Message:  subject + " " + fmt.Sprintf(format, args...),
		})
	}

	switch n := v.CountSources(rec); {
	case n == 0:
		if fl.Has(flags.DeleteRecordsWithMissingImage) {
			doc.Delete(index)
			rec.Validated = true
			diag(report.Info, "did not have an image file and has been deleted.")
			return true
		}
		if !fl.Has(flags.IgnoreMissingImages) {
			diag(report.Warning, "does not have an image file.")
		}
	case n > 1:
		diag(report.Warning, "has %d matching image files.", n)
	}

	switch tmpl := v.MatchDestination(rec.To); {
	case tmpl == nil:
		diag(report.Important, "has an invalid to-path.")
	case !v.resolve(rec, tmpl):
		diag(report.Important, "has an invalid ID in to-path.")
	case !fl.Has(flags.IgnoreNonMatchingIDs) && !IDsMatch(rec.From, rec.To):
		diag(report.Warning, "has non-matching IDs in image file and destination.")
	}

	rec.Validated = true
	return false
}

// CountSources counts the image files the record points at, one per
// configured extension that exists next to the source path.
func (v *Validator) CountSources(rec *document.Record) int {
	base := rec.SourcePath()
	n := 0
	for _, ext := range v.extensions {
		if v.Exists(base + "." + ext) {
			n++
		}
	}
	return n
}

// MatchDestination returns the template the destination conforms to, or nil.
// A template equal to the destination wins over any pattern match; otherwise
// templates are tried in configured order.
func (v *Validator) MatchDestination(to string) *Template {
	for _, t := range v.templates {
		if t.Raw == to {
			return t
		}
	}
	for _, t := range v.templates {
		if t.shape.MatchString(to) {
			return t
		}
	}
	return nil
}

// resolve refines the record's destination to the digits-only pattern of
// tmpl and reports whether the destination matches it.
func (v *Validator) resolve(rec *document.Record, tmpl *Template) bool {
	rec.Destination = tmpl.idsExpr
	return tmpl.ids.MatchString(rec.To)
}

// IDsMatch reports whether a numeric source name agrees with the first
// number in the destination. Paths without a number always agree.
func IDsMatch(from, to string) bool {
	m := sourceIDPattern.FindStringSubmatch(from)
	if m == nil {
		return true
	}
	dest := destinationIDPattern.FindString(to)
	if dest == "" {
		return true
	}
	return sameNumber(m[1], dest)
}

// sameNumber compares two digit strings as integers of any length.
func sameNumber(a, b string) bool {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	return a == b
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
