// Package document holds one record file: its source text and the records
// parsed from it, kept consistent with each other through every edit.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/aidanlsb/gfxcheck/internal/atomicfile"
	"github.com/aidanlsb/gfxcheck/internal/flags"
	"github.com/aidanlsb/gfxcheck/internal/grammar"
	"github.com/aidanlsb/gfxcheck/internal/report"
)

// DefaultIndent is used by Format when no indent is configured.
const DefaultIndent = "\t"

var bom = []byte{0xEF, 0xBB, 0xBF}

var (
	// ErrInvalidEncoding is returned by Load for text that is not UTF-8.
	ErrInvalidEncoding = errors.New("file encoding is not UTF-8")
	// ErrUnconvertedBOM is returned by NormalizeEncoding when the text starts
	// with a byte order mark and conversion is not allowed.
	ErrUnconvertedBOM = errors.New("file encoding is UTF-8-BOM")
)

// Tristate is an optional boolean.
type Tristate int8

const (
	Unset Tristate = iota
	True
	False
)

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "none"
	}
}

// Booleans holds the boolean declarations of a record file.
type Booleans struct {
	Preload Tristate `yaml:"preload,omitempty"`
	Amap    Tristate `yaml:"amap,omitempty"`
}

// lookup returns the declaration slot for a boolean ID.
func (b *Booleans) lookup(id string) (*Tristate, bool) {
	switch id {
	case "preload":
		return &b.Preload, true
	case "amap":
		return &b.Amap, true
	default:
		return nil, false
	}
}

// Span is a byte range of the current text.
type Span struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Record maps one source image to one destination.
type Record struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`

	// Destination is the destination template the record matched, refined
	// to the digits-only identifier pattern once validated.
	Destination string `yaml:"destination,omitempty"`
	Validated   bool   `yaml:"validated,omitempty"`

	// Spans are the occurrences of this record in the document text. An
	// exact duplicate that was reported but kept adds a second span.
	Spans []Span `yaml:"spans,omitempty"`

	doc *Document
}

// Document returns the record file the record belongs to.
func (r *Record) Document() *Document {
	return r.doc
}

// Dir returns the directory of the owning record file.
func (r *Record) Dir() string {
	if r.doc == nil {
		return ""
	}
	return r.doc.Dir()
}

// SourcePath returns the source image path without extension.
func (r *Record) SourcePath() string {
	return filepath.Clean(filepath.Join(r.Dir(), filepath.FromSlash(r.From)))
}

// Equal reports whether two records are semantically the same record.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Dir() == o.Dir() && r.From == o.From && r.To == o.To && r.Destination == o.Destination
}

// Element renders the record as a canonical single-line element.
func (r *Record) Element() string {
	return fmt.Sprintf(`<record from="%s" to="%s"/>`, r.From, r.To)
}

// Document is one record file.
type Document struct {
	Path string `yaml:"path"`

	// Original is the text as last read from or written to disk.
	Original string `yaml:"original,omitempty"`
	// Text is the current text, including unsaved edits.
	Text string `yaml:"text,omitempty"`

	Booleans Booleans  `yaml:"booleans"`
	Records  []*Record `yaml:"records,omitempty"`

	// Cursor is the index of the record being validated.
	Cursor int `yaml:"cursor"`

	Loaded    bool `yaml:"loaded"`
	Parsed    bool `yaml:"parsed"`
	Validated bool `yaml:"validated"`
	Failed    bool `yaml:"failed,omitempty"`
	Retired   bool `yaml:"retired,omitempty"`
}

// New creates a document for the record file at path.
func New(path string) *Document {
	return &Document{Path: path}
}

// Dir returns the directory holding the record file.
func (d *Document) Dir() string {
	return filepath.Dir(d.Path)
}

// Relink restores record back-references, which are not serialized.
func (d *Document) Relink() {
	for _, r := range d.Records {
		r.doc = d
	}
}

// Load reads the record file.
func (d *Document) Load() error {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return fmt.Errorf("read record file: %w", err)
	}
	return d.SetSource(data)
}

// SetSource installs data as both the original and the current text.
func (d *Document) SetSource(data []byte) error {
	if !utf8.Valid(data) {
		return ErrInvalidEncoding
	}
	d.Original = string(data)
	d.Text = d.Original
	d.Loaded = true
	return nil
}

// HasBOM reports whether the current text starts with a UTF-8 byte order mark.
func (d *Document) HasBOM() bool {
	return strings.HasPrefix(d.Text, string(bom))
}

// NormalizeEncoding strips a leading byte order mark when convert is true.
// It reports whether the text changed.
func (d *Document) NormalizeEncoding(convert bool) (bool, error) {
	if !d.HasBOM() {
		return false, nil
	}
	if !convert {
		return false, ErrUnconvertedBOM
	}
	d.Text = string(bytes.TrimPrefix([]byte(d.Text), bom))
	return true, nil
}

// Changed reports whether the current text differs from the original.
func (d *Document) Changed() bool {
	return d.Text != d.Original
}

// Save writes the current text back if it changed. It reports whether a
// write happened. The write replaces the file atomically.
func (d *Document) Save() (bool, error) {
	if !d.Changed() {
		return false, nil
	}
	if err := atomicfile.WriteString(d.Path, d.Text, 0); err != nil {
		return false, fmt.Errorf("save record file: %w", err)
	}
	d.Original = d.Text
	return true, nil
}

// Retire drops the text of a finished document. Records are kept because
// the anomaly scan needs their source paths.
func (d *Document) Retire() {
	d.Original = ""
	d.Text = ""
	for _, r := range d.Records {
		r.Spans = nil
	}
	d.Retired = true
}

// Parse parses the current text into booleans and records. Document-level
// checks run here, in document order: an exact duplicate is either cut from
// the text or reported, and conflicting destinations or sources are
// reported. A grammar error aborts parsing and leaves no records.
func (d *Document) Parse(fl flags.Set, sink report.Sink) error {
	file, err := grammar.Parse(d.Text)
	if err != nil {
		return err
	}

	d.Booleans = Booleans{}
	for _, b := range file.Booleans {
		d.declare(b, sink)
	}

	type pair struct{ from, to string }
	byPair := make(map[pair]*Record)
	sources := make(map[string]bool)
	destinations := make(map[string]bool)

	d.Records = nil
	var cuts []Span
	for _, el := range file.Records {
		span := Span{Start: el.Start, End: el.End}
		key := pair{el.From, el.To}

		if first, ok := byPair[key]; ok {
			if fl.Has(flags.DeleteDuplicateRecords) {
				cuts = append(cuts, span)
				sink.Report(d.diag(report.Info, `Record from="%s" to="%s" already detected in the config file. Deleted.`, el.From, el.To))
			} else {
				first.Spans = append(first.Spans, span)
				sink.Report(d.diag(report.Warning, `Record from="%s" to="%s" appears multiple times in the config file.`, el.From, el.To))
			}
			continue
		}

		if destinations[el.To] {
			sink.Report(d.diag(report.Warning, "%s appears multiple times in the config.", el.To))
		}
		if sources[el.From] && !fl.Has(flags.IgnoreMultiUseImages) {
			sink.Report(d.diag(report.Warning, "%s is used multiple times in the config.", el.From))
		}

		rec := &Record{From: el.From, To: el.To, Spans: []Span{span}, doc: d}
		d.Records = append(d.Records, rec)
		byPair[key] = rec
		sources[el.From] = true
		destinations[el.To] = true
	}

	for i := len(cuts) - 1; i >= 0; i-- {
		d.cut(cuts[i])
	}

	d.Cursor = 0
	d.Parsed = true
	return nil
}

func (d *Document) declare(b grammar.Boolean, sink report.Sink) {
	slot, ok := d.Booleans.lookup(b.ID)
	if !ok {
		sink.Report(d.diag(report.Important, `Boolean id="%s" value="%s" does not have a valid ID.`, b.ID, b.Value))
		return
	}

	var value Tristate
	switch b.Value {
	case "true":
		value = True
	case "false":
		value = False
	default:
		sink.Report(d.diag(report.Important, `Boolean id="%s" value="%s" does not have a valid value.`, b.ID, b.Value))
		return
	}

	if *slot != Unset {
		sink.Report(d.diag(report.Warning, `Boolean id="%s" value="%s" has already been defined.`, b.ID, b.Value))
		return
	}
	*slot = value
}

// Delete removes the record at index from both the record list and the
// text. Every textual occurrence of the record is cut. The cursor moves back
// so the record that slides into index is not skipped.
func (d *Document) Delete(index int) {
	rec := d.Records[index]
	spans := append([]Span(nil), rec.Spans...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })
	for _, s := range spans {
		d.cut(s)
	}

	d.Records = append(d.Records[:index], d.Records[index+1:]...)
	rec.doc = nil
	if index <= d.Cursor {
		d.Cursor--
	}
}

// Add appends a record to a document being built from scratch, such as a
// generated record file. Format renders the text afterwards.
func (d *Document) Add(from, to string) *Record {
	rec := &Record{From: from, To: to, doc: d}
	d.Records = append(d.Records, rec)
	return rec
}

// cut removes s from the text and shifts every later span.
func (d *Document) cut(s Span) {
	d.Text = d.Text[:s.Start] + d.Text[s.End:]
	n := s.End - s.Start
	for _, r := range d.Records {
		for i := range r.Spans {
			if r.Spans[i].Start >= s.End {
				r.Spans[i].Start -= n
				r.Spans[i].End -= n
			}
		}
	}
}

// Format regenerates the text in canonical form: declared booleans, then the
// records sorted by source and destination, one element per line.
func (d *Document) Format(indent string) {
	if indent == "" {
		indent = DefaultIndent
	}

	var b strings.Builder
	b.WriteString("<record>\n")
	for _, decl := range []struct {
		id    string
		value Tristate
	}{
		{"preload", d.Booleans.Preload},
		{"amap", d.Booleans.Amap},
	} {
		if decl.value == Unset {
			continue
		}
		fmt.Fprintf(&b, "%s<boolean id=\"%s\" value=\"%s\"/>\n", indent, decl.id, decl.value)
	}
	fmt.Fprintf(&b, "%s<list id=\"maps\">\n", indent)

	sorted := append([]*Record(nil), d.Records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		return sorted[i].To < sorted[j].To
	})

	for _, r := range sorted {
		b.WriteString(indent)
		b.WriteString(indent)
		start := b.Len()
		b.WriteString(r.Element())
		b.WriteByte('\n')
		// The span runs to the next element so that cutting it leaves the
		// surrounding lines intact.
		r.Spans = []Span{{Start: start, End: b.Len() + 2*len(indent)}}
	}
	if n := len(sorted); n > 0 {
		// The last element is followed by the list's closing indent only.
		last := sorted[n-1]
		last.Spans[0].End = b.Len() + len(indent)
	}

	fmt.Fprintf(&b, "%s</list>\n</record>", indent)
	d.Text = b.String()
}

// SourcePaths returns the source image paths of all records.
func (d *Document) SourcePaths() []string {
	out := make([]string, 0, len(d.Records))
	for _, r := range d.Records {
		out = append(out, r.SourcePath())
	}
	return out
}

func (d *Document) diag(sev report.Severity, format string, args ...interface{}) report.Diagnostic {
	return report.Diagnostic{Severity: sev, Path: d.Path, Message: fmt.Sprintf(format, args...)}
}
