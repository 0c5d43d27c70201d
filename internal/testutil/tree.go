// Package testutil provides reusable helpers for tests that need a graphics
// location on disk.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestTree represents a temporary directory tree of graphics locations.
type TestTree struct {
	Path  string
	t     *testing.T
	files map[string]string
}

// NewTestTree creates a new tree builder.
// Call Build() to create the actual directory.
func NewTestTree(t *testing.T) *TestTree {
	t.Helper()
	return &TestTree{
		t:     t,
		files: make(map[string]string),
	}
}

// WithFile adds a file to the tree.
// The path is slash-separated and relative to the tree root.
func (tr *TestTree) WithFile(path, content string) *TestTree {
	tr.files[path] = content
	return tr
}

// WithImages adds placeholder image files.
func (tr *TestTree) WithImages(paths ...string) *TestTree {
	for _, p := range paths {
		tr.files[p] = "\x89PNG"
	}
	return tr
}

// WithRecords adds a record file at path holding the given elements.
func (tr *TestTree) WithRecords(path string, elements ...string) *TestTree {
	tr.files[path] = RecordFile(elements...)
	return tr
}

// Build creates the tree directory and all configured files.
// Returns the TestTree for method chaining.
func (tr *TestTree) Build() *TestTree {
	tr.t.Helper()

	tr.Path = tr.t.TempDir()
	for path, content := range tr.files {
		tr.writeFile(path, content)
	}
	return tr
}

// Abs returns the absolute path of a tree-relative path.
func (tr *TestTree) Abs(relPath string) string {
	return filepath.Join(tr.Path, filepath.FromSlash(relPath))
}

// writeFile writes a file into the tree, creating directories as needed.
func (tr *TestTree) writeFile(relPath, content string) {
	tr.t.Helper()
	fullPath := tr.Abs(relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		tr.t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		tr.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
}

// WriteFile writes a file into an already built tree.
func (tr *TestTree) WriteFile(relPath, content string) {
	tr.t.Helper()
	tr.writeFile(relPath, content)
}

// ReadFile reads a file from the tree.
func (tr *TestTree) ReadFile(relPath string) string {
	tr.t.Helper()
	content, err := os.ReadFile(tr.Abs(relPath))
	if err != nil {
		tr.t.Fatalf("failed to read file %s: %v", relPath, err)
	}
	return string(content)
}

// FileExists checks if a file exists in the tree.
func (tr *TestTree) FileExists(relPath string) bool {
	tr.t.Helper()
	_, err := os.Stat(tr.Abs(relPath))
	return err == nil
}

// Record returns one record element.
func Record(from, to string) string {
	return fmt.Sprintf(`<record from="%s" to="%s"/>`, from, to)
}

// RecordFile returns a record file holding the given elements, one per line.
func RecordFile(elements ...string) string {
	var b strings.Builder
	b.WriteString("<record>\n\t<list id=\"maps\">\n")
	for _, el := range elements {
		b.WriteString("\t\t")
		b.WriteString(el)
		b.WriteByte('\n')
	}
	b.WriteString("\t</list>\n</record>\n")
	return b.String()
}
