package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aidanlsb/gfxcheck/internal/report"
)

// StatusInterval is the minimum time between two status line redraws.
const StatusInterval = 100 * time.Millisecond

// Console prints diagnostics as they are reported and keeps a one-line
// status display up to date on terminals.
type Console struct {
	w       io.Writer
	display *DisplayContext
	// Threshold is the least severe level printed live.
	Threshold report.Severity

	mu         sync.Mutex
	now        func() time.Time
	lastStatus time.Time
	statusOn   bool
}

// NewConsole creates a console writing to w.
func NewConsole(w io.Writer, display *DisplayContext, threshold report.Severity) *Console {
	if display == nil {
		display = &DisplayContext{TermWidth: DefaultTermWidth}
	}
	return &Console{w: w, display: display, Threshold: threshold, now: time.Now}
}

// Report implements report.Sink.
func (c *Console) Report(d report.Diagnostic) {
	if d.Severity > c.Threshold {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearStatus()
	fmt.Fprintln(c.w, Diagnostic(d))
}

// Status redraws the status line, at most once per StatusInterval. It does
// nothing when output is not a terminal.
func (c *Console) Status(done, total int, current string) {
	if !c.display.IsTTY {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.statusOn && now.Sub(c.lastStatus) < StatusInterval {
		return
	}
	c.lastStatus = now

	counter := fmt.Sprintf("(%d/%d)", done, total)
	width := c.display.AvailableWidth(len("Validating ") + len(counter) + 2)
	fmt.Fprintf(c.w, "\r\033[KValidating %s %s", Muted.Render(counter), truncateLeft(current, width))
	c.statusOn = true
}

// Done clears the status line.
func (c *Console) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearStatus()
}

func (c *Console) clearStatus() {
	if c.statusOn {
		fmt.Fprint(c.w, "\r\033[K")
		c.statusOn = false
	}
}

// truncateLeft keeps the end of s, which for paths is the informative part.
func truncateLeft(s string, width int) string {
	runes := []rune(s)
	if width <= 1 || len(runes) <= width {
		return s
	}
	return "…" + string(runes[len(runes)-width+1:])
}
