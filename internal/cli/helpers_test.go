package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aidanlsb/gfxcheck/internal/config"
	"github.com/aidanlsb/gfxcheck/internal/testutil"
)

var captureStdoutMu sync.Mutex

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	captureStdoutMu.Lock()
	defer captureStdoutMu.Unlock()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	os.Stdout = w

	outputCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		var buf bytes.Buffer
		_, copyErr := io.Copy(&buf, r)
		_ = r.Close()
		if copyErr != nil {
			errCh <- copyErr
			return
		}
		outputCh <- buf.String()
	}()

	fn()

	os.Stdout = orig
	_ = w.Close()
	select {
	case err := <-errCh:
		t.Fatalf("io.Copy: %v", err)
		return ""
	case output := <-outputCh:
		return output
	}
}

// resetCLIState restores every flag variable to its default, since cobra
// keeps flag values between executions.
func resetCLIState() {
	settingsPath = ""
	jsonOutput = false
	logLevel = "error"
	logFormat = "text"
	settings = nil
	logger = nil

	runFresh = false
	runStrict = false
	runThreshold = "warning"
	runNoHistory = false
	generateForce = false
	initLocations = nil
	initTemplates = nil
	initForce = false
	historyLimit = 20
	historyHTML = false
	historyKeep = 50
}

// executeCLI runs the root command with args and returns what it printed.
func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCLIState()
	t.Cleanup(resetCLIState)

	rootCmd.SetArgs(args)
	var err error
	out := captureStdout(t, func() {
		err = rootCmd.Execute()
	})
	return out, err
}

type testResponse struct {
	OK       bool            `json:"ok"`
	Data     json.RawMessage `json:"data"`
	Error    *ErrorInfo      `json:"error"`
	Warnings []Warning       `json:"warnings"`
	Meta     *Meta           `json:"meta"`
}

func decodeResponse(t *testing.T, out string) testResponse {
	t.Helper()
	var resp testResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("expected JSON output, got parse error: %v; out=%s", err, out)
	}
	return resp
}

func decodeData(t *testing.T, resp testResponse, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("decode data: %v; data=%s", err, resp.Data)
	}
}

const portrait = "graphics/person/{id}/portrait"

// buildFaces creates a graphics location with one finding of most kinds and
// a settings file next to it. It returns the tree and the settings path.
func buildFaces(t *testing.T) (*testutil.TestTree, string) {
	t.Helper()
	tr := testutil.NewTestTree(t).
		WithRecords("faces/config.xml",
			testutil.Record("12", "graphics/person/12/portrait"),
			testutil.Record("13", "graphics/person/13/portrait"),
			testutil.Record("14", "graphics/person/15/portrait"),
		).
		WithRecords("faces/sub/config.xml",
			testutil.Record("7", "bad/7"),
		).
		WithImages("faces/12.png", "faces/14.png", "faces/99.png", "faces/sub/7.png").
		WithFile("faces/readme.txt", "notes").
		Build()

	s := config.Default()
	s.Locations = []string{tr.Abs("faces")}
	s.ValidToPaths = []string{portrait}
	s.ImageExtensions = []string{"png"}
	path := tr.Abs("gfxcheck.toml")
	if err := config.SaveTo(path, s); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	return tr, path
}
