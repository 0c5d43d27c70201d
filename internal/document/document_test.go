package document

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aidanlsb/gfxcheck/internal/flags"
	"github.com/aidanlsb/gfxcheck/internal/grammar"
	"github.com/aidanlsb/gfxcheck/internal/report"
)

func parseText(t *testing.T, text string, fl ...flags.Flag) (*Document, *report.Log) {
	t.Helper()
	d := New(filepath.Join("gfx", "portraits", "config.xml"))
	if err := d.SetSource([]byte(text)); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
	set := make(flags.Set)
	for _, f := range fl {
		set[f] = struct{}{}
	}
	var log report.Log
	if err := d.Parse(set, &log); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d, &log
}

// reparse checks that the current text parses to the same records as the
// in-memory record list.
func reparse(t *testing.T, d *Document) {
	t.Helper()
	file, err := grammar.Parse(d.Text)
	if err != nil {
		t.Fatalf("text no longer parses: %v\n%s", err, d.Text)
	}
	seen := make(map[string]bool)
	var got []string
	for _, el := range file.Records {
		key := el.From + "->" + el.To
		if !seen[key] {
			got = append(got, key)
			seen[key] = true
		}
	}
	var want []string
	for _, r := range d.Records {
		want = append(want, r.From+"->"+r.To)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("text and records diverged: text has %v, records are %v", got, want)
	}
}

func TestParseExactDuplicates(t *testing.T) {
	text := `<record>
	<list id="maps">
		<record from="a" to="x"/>
		<record from="b" to="y"/>
		<record from="a" to="x"/>
	</list>
</record>`

	t.Run("deleted when flagged", func(t *testing.T) {
		d, log := parseText(t, text, flags.DeleteDuplicateRecords)
		if len(d.Records) != 2 || d.Records[0].From != "a" || d.Records[1].From != "b" {
			t.Fatalf("unexpected records: %+v", d.Records)
		}
		if strings.Count(d.Text, `<record from="a" to="x"/>`) != 1 {
			t.Errorf("expected exactly one occurrence left:\n%s", d.Text)
		}
		if !strings.Contains(d.Text, `<record from="b" to="y"/>`) {
			t.Errorf("unrelated record was removed:\n%s", d.Text)
		}
		infos := log.BySeverity(report.Info)
		if len(infos) != 1 || !strings.Contains(infos[0].Message, "Deleted") {
			t.Errorf("expected one info diagnostic, got %v", log.Diagnostics)
		}
		if !d.Changed() {
			t.Error("document should be marked changed")
		}
		reparse(t, d)
	})

	t.Run("reported otherwise", func(t *testing.T) {
		d, log := parseText(t, text)
		if len(d.Records) != 2 {
			t.Fatalf("duplicate should not be added to the record list: %+v", d.Records)
		}
		if d.Changed() {
			t.Error("text should be untouched")
		}
		if len(d.Records[0].Spans) != 2 {
			t.Errorf("kept duplicate should be tracked as a second span, got %v", d.Records[0].Spans)
		}
		warnings := log.BySeverity(report.Warning)
		if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "appears multiple times") {
			t.Errorf("expected one warning, got %v", log.Diagnostics)
		}
	})
}

func TestParseConflicts(t *testing.T) {
	text := `<record><list id="maps">
<record from="a" to="x"/>
<record from="b" to="x"/>
<record from="a" to="y"/>
</list></record>`

	t.Run("both reported", func(t *testing.T) {
		d, log := parseText(t, text)
		if len(d.Records) != 3 {
			t.Fatalf("conflicting records are kept, got %d", len(d.Records))
		}
		warnings := log.BySeverity(report.Warning)
		if len(warnings) != 2 {
			t.Fatalf("expected 2 warnings, got %v", log.Diagnostics)
		}
		if warnings[0].Message != "x appears multiple times in the config." {
			t.Errorf("unexpected destination warning %q", warnings[0].Message)
		}
		if warnings[1].Message != "a is used multiple times in the config." {
			t.Errorf("unexpected source warning %q", warnings[1].Message)
		}
	})

	t.Run("multi-use suppressed", func(t *testing.T) {
		_, log := parseText(t, text, flags.IgnoreMultiUseImages)
		if got := len(log.BySeverity(report.Warning)); got != 1 {
			t.Errorf("expected only the destination warning, got %v", log.Diagnostics)
		}
	})
}

func TestParseBooleans(t *testing.T) {
	text := `<record>
<boolean id="preload" value="true"/>
<boolean id="preload" value="false"/>
<boolean id="amap" value="yes"/>
<boolean id="amap" value="false"/>
<boolean id="lazy" value="true"/>
<list id="maps"></list>
</record>`

	d, log := parseText(t, text)
	if d.Booleans.Preload != True {
		t.Errorf("first valid preload should win, got %v", d.Booleans.Preload)
	}
	if d.Booleans.Amap != False {
		t.Errorf("invalid value should be ignored, got %v", d.Booleans.Amap)
	}

	counts := log.Counts()
	if counts[report.Important] != 2 {
		t.Errorf("expected 2 important diagnostics (bad value, bad id), got %v", log.Diagnostics)
	}
	if counts[report.Warning] != 1 {
		t.Errorf("expected 1 redeclaration warning, got %v", log.Diagnostics)
	}
}

func TestParseFailureLeavesNoRecords(t *testing.T) {
	d := New("config.xml")
	if err := d.SetSource([]byte(`<record><list id="maps"><record from="a" to="b"/>oops</list></record>`)); err != nil {
		t.Fatal(err)
	}
	var log report.Log
	err := d.Parse(nil, &log)
	var re *grammar.RecordError
	if !errors.As(err, &re) {
		t.Fatalf("expected RecordError, got %v", err)
	}
	if len(d.Records) != 0 || d.Parsed {
		t.Errorf("failed parse should not produce records: %+v", d.Records)
	}
	if log.Len() != 0 {
		t.Errorf("failed parse should not report record diagnostics: %v", log.Diagnostics)
	}
}

func TestDeleteKeepsTextConsistent(t *testing.T) {
	text := `<record>
  <list id="maps">
    <record from="1" to="p/1"/>
    <record from="2" to="p/2"/>
    <record  from="3"  to="p/3" />
  </list>
</record>`

	d, _ := parseText(t, text)
	d.Cursor = 1
	d.Delete(1)

	if d.Cursor != 0 {
		t.Errorf("cursor should move back, got %d", d.Cursor)
	}
	if len(d.Records) != 2 || d.Records[1].From != "3" {
		t.Fatalf("unexpected records: %+v", d.Records)
	}
	if strings.Contains(d.Text, `from="2"`) {
		t.Errorf("deleted record still in text:\n%s", d.Text)
	}
	reparse(t, d)

	// Spans of later records were shifted, so deleting again still works.
	d.Delete(1)
	if strings.Contains(d.Text, `from="3"`) {
		t.Errorf("second delete missed its text:\n%s", d.Text)
	}
	reparse(t, d)
}

func TestDeleteRemovesKeptDuplicates(t *testing.T) {
	text := `<record><list id="maps"><record from="a" to="x"/> <record from="b" to="y"/> <record from="a" to="x"/></list></record>`
	d, _ := parseText(t, text)
	d.Delete(0)
	if strings.Contains(d.Text, `from="a"`) {
		t.Errorf("every occurrence should be cut:\n%s", d.Text)
	}
	reparse(t, d)
}

func TestFormat(t *testing.T) {
	text := `<record><!-- generated -->
<boolean id="amap" value="false"/>
<list id="maps"><record from="b" to="p/2"/><record from="a" to="p/9"/>
<record from="a" to="p/1"/></list></record>`

	d, _ := parseText(t, text)
	d.Format("  ")

	want := `<record>
  <boolean id="amap" value="false"/>
  <list id="maps">
    <record from="a" to="p/1"/>
    <record from="a" to="p/9"/>
    <record from="b" to="p/2"/>
  </list>
</record>`
	if d.Text != want {
		t.Errorf("unexpected format:\n%s\nwant:\n%s", d.Text, want)
	}

	// Insertion order of the record list is not changed by formatting.
	if d.Records[0].From != "b" {
		t.Errorf("record order changed: %+v", d.Records)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	text := `<record>
<boolean id="preload" value="true"/><boolean id="amap" value="false"/>
<list id="maps">
  <record from="z/10" to="p/10"/>
  <!-- keep -->
  <record   from="a/2"  to="p/2"/>
</list>
</record>`

	d, _ := parseText(t, text)
	d.Format("\t")
	once := d.Text

	again, _ := parseText(t, once)
	again.Format("\t")
	if again.Text != once {
		t.Errorf("format is not idempotent:\n%s\nvs\n%s", once, again.Text)
	}
}

func TestFormatSpansAllowDelete(t *testing.T) {
	d, _ := parseText(t, `<record><list id="maps"><record from="b" to="y"/><record from="a" to="x"/></list></record>`)
	d.Format("\t")
	d.Delete(0) // "b", which formats last
	// The cut runs from the element to the next token, like for parsed text.
	want := "<record>\n\t<list id=\"maps\">\n\t\t<record from=\"a\" to=\"x\"/>\n\t\t</list>\n</record>"
	if d.Text != want {
		t.Errorf("unexpected text after delete:\n%q\nwant:\n%q", d.Text, want)
	}
}

func TestNormalizeEncoding(t *testing.T) {
	src := "\xEF\xBB\xBF<record><list id=\"maps\"></list></record>"

	t.Run("refused without permission", func(t *testing.T) {
		d := New("config.xml")
		if err := d.SetSource([]byte(src)); err != nil {
			t.Fatal(err)
		}
		if _, err := d.NormalizeEncoding(false); !errors.Is(err, ErrUnconvertedBOM) {
			t.Fatalf("expected ErrUnconvertedBOM, got %v", err)
		}
	})

	t.Run("stripped with permission", func(t *testing.T) {
		d := New("config.xml")
		if err := d.SetSource([]byte(src)); err != nil {
			t.Fatal(err)
		}
		changed, err := d.NormalizeEncoding(true)
		if err != nil || !changed {
			t.Fatalf("NormalizeEncoding = %v, %v", changed, err)
		}
		if d.HasBOM() || !d.Changed() {
			t.Error("mark should be stripped and the document changed")
		}
	})

	t.Run("no mark", func(t *testing.T) {
		d := New("config.xml")
		if err := d.SetSource([]byte("<record/>")); err != nil {
			t.Fatal(err)
		}
		if changed, err := d.NormalizeEncoding(false); changed || err != nil {
			t.Errorf("NormalizeEncoding = %v, %v", changed, err)
		}
	})
}

func TestSetSourceRejectsInvalidUTF8(t *testing.T) {
	d := New("config.xml")
	if err := d.SetSource([]byte{0xff, 0xfe, 'x'}); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestSaveOnlyWhenChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")
	original := `<record><list id="maps"><record from="a" to="x"/></list></record>`
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	d := New(path)
	if err := d.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	wrote, err := d.Save()
	if err != nil || wrote {
		t.Fatalf("unchanged document should not be written: %v, %v", wrote, err)
	}

	d.Text = strings.Replace(d.Text, `"x"`, `"y"`, 1)
	wrote, err = d.Save()
	if err != nil || !wrote {
		t.Fatalf("changed document should be written: %v, %v", wrote, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != d.Text {
		t.Errorf("file content = %q, want %q", data, d.Text)
	}
	if d.Changed() {
		t.Error("saved text becomes the new original")
	}
}

func TestRecordIdentity(t *testing.T) {
	d, _ := parseText(t, `<record><list id="maps"><record from="a" to="x"/><record from="a" to="y"/></list></record>`)
	other, _ := parseText(t, `<record><list id="maps"><record from="a" to="x"/></list></record>`)

	if !d.Records[0].Equal(other.Records[0]) {
		t.Error("records with the same directory, source, destination and pattern should be equal")
	}
	if d.Records[0].Equal(d.Records[1]) {
		t.Error("records with different destinations should differ")
	}
	other.Records[0].Destination = "p/[0-9]+"
	if d.Records[0].Equal(other.Records[0]) {
		t.Error("records with different resolved patterns should differ")
	}

	want := filepath.Join("gfx", "portraits", "a")
	if got := d.Records[0].SourcePath(); got != want {
		t.Errorf("SourcePath = %q, want %q", got, want)
	}
}

func TestRetire(t *testing.T) {
	d, _ := parseText(t, `<record><list id="maps"><record from="a" to="x"/></list></record>`)
	d.Retire()
	if d.Text != "" || d.Original != "" {
		t.Error("retired document should drop its text")
	}
	if len(d.SourcePaths()) != 1 {
		t.Error("retired document keeps its records")
	}
}
