package testutil

import (
	"os"
	"strings"
)

// AssertFileExists fails the test if the file does not exist.
func (tr *TestTree) AssertFileExists(relPath string) {
	tr.t.Helper()
	if _, err := os.Stat(tr.Abs(relPath)); os.IsNotExist(err) {
		tr.t.Errorf("expected file to exist: %s", relPath)
	}
}

// AssertFileNotExists fails the test if the file exists.
func (tr *TestTree) AssertFileNotExists(relPath string) {
	tr.t.Helper()
	if _, err := os.Stat(tr.Abs(relPath)); err == nil {
		tr.t.Errorf("expected file to not exist: %s", relPath)
	}
}

// AssertFileContains fails the test if the file does not contain the substring.
func (tr *TestTree) AssertFileContains(relPath, substr string) {
	tr.t.Helper()
	content := tr.ReadFile(relPath)
	if !strings.Contains(content, substr) {
		tr.t.Errorf("expected file %s to contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertFileNotContains fails the test if the file contains the substring.
func (tr *TestTree) AssertFileNotContains(relPath, substr string) {
	tr.t.Helper()
	content := tr.ReadFile(relPath)
	if strings.Contains(content, substr) {
		tr.t.Errorf("expected file %s to not contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertFileEquals fails the test if the file content differs from want.
func (tr *TestTree) AssertFileEquals(relPath, want string) {
	tr.t.Helper()
	if got := tr.ReadFile(relPath); got != want {
		tr.t.Errorf("file %s:\ngot:\n%s\nwant:\n%s", relPath, got, want)
	}
}
