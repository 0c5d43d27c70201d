package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aidanlsb/gfxcheck/internal/checkpoint"
	"github.com/aidanlsb/gfxcheck/internal/config"
	"github.com/aidanlsb/gfxcheck/internal/progress"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		off     slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := newLogger(tt.level, "text", &bytes.Buffer{})
			if !l.Enabled(context.Background(), tt.enabled) {
				t.Errorf("level %s should be enabled", tt.enabled)
			}
			if l.Enabled(context.Background(), tt.off) {
				t.Errorf("level %s should be disabled", tt.off)
			}
		})
	}
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger("info", "json", &buf).Info("saved checkpoint", "slot", "1.snapshot")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "saved checkpoint" || entry["slot"] != "1.snapshot" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestInitWritesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gfxcheck.toml")

	out, err := executeCLI(t, "init", path, "--location", "/srv/gfx/faces", "--template", portrait, "--json")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if resp := decodeResponse(t, out); !resp.OK {
		t.Fatalf("expected ok=true; out=%s", out)
	}

	s, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(s.Locations) != 1 || s.Locations[0] != "/srv/gfx/faces" {
		t.Errorf("Locations = %v", s.Locations)
	}
	if len(s.ValidToPaths) != 1 || s.ValidToPaths[0] != portrait {
		t.Errorf("ValidToPaths = %v", s.ValidToPaths)
	}

	out, err = executeCLI(t, "init", path, "--json")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	resp := decodeResponse(t, out)
	if resp.OK || resp.Error == nil || resp.Error.Code != ErrSettingsExists {
		t.Fatalf("expected %s error; out=%s", ErrSettingsExists, out)
	}

	if _, err := executeCLI(t, "init", path, "--force", "--json"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestMissingSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	out, err := executeCLI(t, "run", "--settings", path, "--json")
	if err == nil {
		t.Fatal("expected an error without a settings file")
	}
	resp := decodeResponse(t, out)
	if resp.OK || resp.Error == nil || resp.Error.Code != ErrSettingsNotFound {
		t.Fatalf("expected %s error; out=%s", ErrSettingsNotFound, out)
	}
}

func TestRunArchivesAndCleansUp(t *testing.T) {
	tr, settingsFile := buildFaces(t)

	out, err := executeCLI(t, "run", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	resp := decodeResponse(t, out)
	if !resp.OK {
		t.Fatalf("expected ok=true; out=%s", out)
	}

	var result runResult
	decodeData(t, resp, &result)
	if result.Resumed {
		t.Error("a first run should not be resumed")
	}
	if result.Stats.Documents != 2 || result.Stats.Records != 4 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
	if result.Counts["WARNING"] != 4 || result.Counts["IMPORTANT"] != 1 {
		t.Errorf("unexpected counts %v", result.Counts)
	}
	if len(result.Diagnostics) != 5 {
		t.Errorf("expected 5 diagnostics, got %d", len(result.Diagnostics))
	}

	if result.LogFile == "" {
		t.Fatal("expected a log file")
	}
	logText, err := os.ReadFile(result.LogFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logText), "has an invalid to-path.") {
		t.Errorf("log misses a finding:\n%s", logText)
	}

	if checkpoint.NewStore(tr.Abs("progress"), nil).Exists() {
		t.Error("checkpoint should be discarded after a finished run")
	}

	out, err = executeCLI(t, "history", "list", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var listed struct {
		Runs []map[string]interface{} `json:"runs"`
	}
	decodeData(t, decodeResponse(t, out), &listed)
	if len(listed.Runs) != 1 || listed.Runs[0]["run_id"] != result.RunID {
		t.Fatalf("unexpected history %v", listed.Runs)
	}

	out, err = executeCLI(t, "history", "show", result.RunID[:8], "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	var shown struct {
		RunID       string           `json:"run_id"`
		Diagnostics []jsonDiagnostic `json:"diagnostics"`
	}
	decodeData(t, decodeResponse(t, out), &shown)
	if shown.RunID != result.RunID || len(shown.Diagnostics) != len(result.Diagnostics) {
		t.Errorf("history show = %s with %d diagnostics", shown.RunID, len(shown.Diagnostics))
	}
	for i, d := range shown.Diagnostics {
		if d != result.Diagnostics[i] {
			t.Errorf("diagnostic %d = %+v, want %+v", i, d, result.Diagnostics[i])
		}
	}
}

func TestRunResumesSavedProgress(t *testing.T) {
	tr, settingsFile := buildFaces(t)

	s, err := config.LoadFrom(settingsFile)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	saved := progress.New(s.Locations, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	if err := checkpoint.NewStore(tr.Abs("progress"), nil).Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := executeCLI(t, "run", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	resp := decodeResponse(t, out)
	var result runResult
	decodeData(t, resp, &result)
	if !result.Resumed || result.RunID != saved.RunID {
		t.Errorf("expected to resume run %s, got %s (resumed=%v)", saved.RunID, result.RunID, result.Resumed)
	}
	if len(resp.Warnings) == 0 || resp.Warnings[0].Code != WarnCheckpointResumed {
		t.Errorf("expected a %s warning, got %v", WarnCheckpointResumed, resp.Warnings)
	}
}

func TestRunFreshIgnoresSavedProgress(t *testing.T) {
	tr, settingsFile := buildFaces(t)
	saved := progress.New([]string{tr.Abs("faces")}, time.Now())
	if err := checkpoint.NewStore(tr.Abs("progress"), nil).Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := executeCLI(t, "run", "--fresh", "--no-history", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var result runResult
	decodeData(t, decodeResponse(t, out), &result)
	if result.Resumed || result.RunID == saved.RunID {
		t.Error("--fresh should start a new run")
	}
	if tr.FileExists("history.db") {
		t.Error("--no-history should not create the history database")
	}
}

func TestRunStrictFailsOnImportantFindings(t *testing.T) {
	_, settingsFile := buildFaces(t)

	out, err := executeCLI(t, "run", "--strict", "--show", "important", "--settings", settingsFile)
	if err == nil {
		t.Fatal("expected --strict to fail")
	}
	if !strings.Contains(out, "has an invalid to-path.") {
		t.Errorf("important finding should be printed live:\n%s", out)
	}
	if strings.Contains(out, "does not have an image file.") {
		t.Errorf("warnings should be hidden with --show important:\n%s", out)
	}
	if !strings.Contains(out, "1 important, 4 warnings") {
		t.Errorf("summary misses the counts:\n%s", out)
	}
}

func TestRunRejectsUnknownSeverity(t *testing.T) {
	_, settingsFile := buildFaces(t)

	out, err := executeCLI(t, "run", "--show", "loud", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	resp := decodeResponse(t, out)
	if resp.OK || resp.Error.Code != ErrInvalidInput {
		t.Fatalf("expected %s; out=%s", ErrInvalidInput, out)
	}
}

func TestCheckLeavesFileUntouched(t *testing.T) {
	tr, settingsFile := buildFaces(t)
	tr.WriteFile("flags.txt", tr.Abs("faces")+"\n> remove what has no image\nDELETE_RECORDS_WITH_MISSING_IMAGE\n")
	before := tr.ReadFile("faces/config.xml")

	out, err := executeCLI(t, "check", tr.Abs("faces/config.xml"), "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	var result checkResult
	decodeData(t, decodeResponse(t, out), &result)

	if result.Records != 2 {
		t.Errorf("Records = %d, want 2", result.Records)
	}
	found := false
	for _, d := range result.Diagnostics {
		if strings.Contains(d.Message, "did not have an image file and has been deleted.") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the deletion to be reported: %+v", result.Diagnostics)
	}
	tr.AssertFileEquals("faces/config.xml", before)
	if checkpoint.NewStore(tr.Abs("progress"), nil).Exists() {
		t.Error("check should not save progress")
	}
}

func TestCheckReportsBrokenFile(t *testing.T) {
	tr, settingsFile := buildFaces(t)
	tr.WriteFile("faces/config.xml", "<record><list id=\"maps\"><record from=\"1\"/></list></record>")

	out, err := executeCLI(t, "check", tr.Abs("faces/config.xml"), "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	var result checkResult
	decodeData(t, decodeResponse(t, out), &result)
	if !result.Failed || result.Counts["CRITICAL"] != 1 {
		t.Errorf("expected a critical failure, got %+v", result)
	}
}

func TestCheckFlagsFileErrors(t *testing.T) {
	tr, settingsFile := buildFaces(t)
	tr.WriteFile("flags.txt", "IGNORE_MISSING_IMAGES\n")

	out, err := executeCLI(t, "check", tr.Abs("faces/config.xml"), "--settings", settingsFile, "--json")
	if err == nil {
		t.Fatal("expected a flags file error")
	}
	resp := decodeResponse(t, out)
	if resp.Error == nil || resp.Error.Code != ErrFlagsInvalid {
		t.Fatalf("expected %s; out=%s", ErrFlagsInvalid, out)
	}
}

func TestFormatRewritesCanonically(t *testing.T) {
	tr, settingsFile := buildFaces(t)
	tr.WriteFile("faces/config.xml", `<record><list id="maps"><record from="14" to="b"/>   <record from="12" to="a"/></list></record>`)

	out, err := executeCLI(t, "format", tr.Abs("faces/config.xml"), "--settings", settingsFile)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(out, "Formatted") {
		t.Errorf("unexpected output %q", out)
	}
	tr.AssertFileEquals("faces/config.xml", "<record>\n\t<list id=\"maps\">\n"+
		"\t\t<record from=\"12\" to=\"a\"/>\n"+
		"\t\t<record from=\"14\" to=\"b\"/>\n"+
		"\t</list>\n</record>")

	out, err = executeCLI(t, "format", tr.Abs("faces/config.xml"), "--settings", settingsFile)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(out, "Already formatted") {
		t.Errorf("second format should change nothing: %q", out)
	}
}

func TestFormatReportsParseErrors(t *testing.T) {
	tr, settingsFile := buildFaces(t)
	tr.WriteFile("faces/config.xml", "junk")

	out, err := executeCLI(t, "format", tr.Abs("faces/config.xml"), "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	resp := decodeResponse(t, out)
	if resp.OK || resp.Error.Code != ErrParseFailed {
		t.Fatalf("expected %s; out=%s", ErrParseFailed, out)
	}
}

func TestGenerate(t *testing.T) {
	tr, settingsFile := buildFaces(t)
	tr.WriteFile("logos/3.png", "")
	tr.WriteFile("logos/10.png", "")
	tr.WriteFile("logos/crest.png", "")

	out, err := executeCLI(t, "generate", tr.Abs("logos"), "graphics/club/{id}/logo", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var data struct {
		Path    string `json:"path"`
		Records int    `json:"records"`
	}
	decodeData(t, decodeResponse(t, out), &data)
	if data.Records != 2 {
		t.Errorf("Records = %d, want 2", data.Records)
	}
	tr.AssertFileContains("logos/config.xml", `<record from="3" to="graphics/club/3/logo"/>`)
	tr.AssertFileContains("logos/config.xml", `<boolean id="preload" value="false"/>`)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"existing file", []string{"generate", tr.Abs("logos"), "graphics/club/{id}/logo"}, ErrFileExists},
		{"no placeholder", []string{"generate", tr.Abs("logos"), "graphics/club/logo"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--settings", settingsFile, "--json")
			out, err := executeCLI(t, args...)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			resp := decodeResponse(t, out)
			if resp.OK || resp.Error.Code != tt.code {
				t.Fatalf("expected %s; out=%s", tt.code, out)
			}
		})
	}
}

func TestStatusAndReset(t *testing.T) {
	tr, settingsFile := buildFaces(t)
	saved := progress.New([]string{tr.Abs("faces")}, time.Now())
	if err := checkpoint.NewStore(tr.Abs("progress"), nil).Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	status := func() map[string]interface{} {
		t.Helper()
		out, err := executeCLI(t, "status", "--settings", settingsFile, "--json")
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		var data map[string]interface{}
		decodeData(t, decodeResponse(t, out), &data)
		return data
	}

	if data := status(); data["saved"] != true || data["run_id"] != saved.RunID {
		t.Fatalf("unexpected status %v", data)
	}

	out, err := executeCLI(t, "reset", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	var reset map[string]interface{}
	decodeData(t, decodeResponse(t, out), &reset)
	if reset["discarded"] != true {
		t.Errorf("unexpected reset result %v", reset)
	}

	if data := status(); data["saved"] != false {
		t.Errorf("progress should be gone, got %v", data)
	}
}

func TestHistoryShowHTMLAndPrune(t *testing.T) {
	_, settingsFile := buildFaces(t)
	for i := 0; i < 2; i++ {
		if _, err := executeCLI(t, "run", "--fresh", "--settings", settingsFile, "--json"); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	out, err := executeCLI(t, "history", "list", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var listed struct {
		Runs []struct {
			RunID string `json:"run_id"`
		} `json:"runs"`
	}
	decodeData(t, decodeResponse(t, out), &listed)
	if len(listed.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(listed.Runs))
	}

	html, err := executeCLI(t, "history", "show", listed.Runs[0].RunID, "--html", "--settings", settingsFile)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	for _, want := range []string{"<h1>", "<table>", "<h2>IMPORTANT</h2>", "invalid to-path."} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML report misses %q:\n%s", want, html)
		}
	}

	out, err = executeCLI(t, "history", "show", "nope", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if resp := decodeResponse(t, out); resp.OK || resp.Error.Code != ErrRunNotFound {
		t.Fatalf("expected %s; out=%s", ErrRunNotFound, out)
	}

	out, err = executeCLI(t, "history", "prune", "--keep", "1", "--settings", settingsFile, "--json")
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	var pruned struct {
		Deleted int `json:"deleted"`
	}
	decodeData(t, decodeResponse(t, out), &pruned)
	if pruned.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", pruned.Deleted)
	}
}

func TestRunWithoutLocations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gfxcheck.toml")
	if err := config.SaveTo(path, config.Default()); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	out, err := executeCLI(t, "run", "--settings", path, "--json")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	resp := decodeResponse(t, out)
	if resp.OK || resp.Error.Code != ErrSettingsInvalid {
		t.Fatalf("expected %s; out=%s", ErrSettingsInvalid, out)
	}
}
