package checkpoint

import (
	"time"

	"github.com/aidanlsb/gfxcheck/internal/progress"
)

// DefaultInterval is the minimum time between two debounced saves.
const DefaultInterval = 10 * time.Second

// Writer saves a run's state after units of work, at most once per interval.
type Writer struct {
	store    *Store
	state    *progress.State
	interval time.Duration

	now     func() time.Time
	last    time.Time
	pending int
	saves   int
}

// NewWriter creates a writer for state. The interval starts now, so the
// first debounced save happens one interval into the run.
func NewWriter(store *Store, state *progress.State, interval time.Duration) *Writer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Writer{store: store, state: state, interval: interval, now: time.Now}
	w.last = w.now()
	return w
}

// UnitDone records a finished unit of work and saves when the interval has
// passed since the last save.
func (w *Writer) UnitDone(u progress.Unit) error {
	w.pending++
	if w.now().Sub(w.last) < w.interval {
		return nil
	}
	w.store.logger.Debug("checkpoint due", "unit", u.String(), "pending", w.pending)
	return w.Flush()
}

// Flush saves immediately.
func (w *Writer) Flush() error {
	if err := w.store.Save(w.state); err != nil {
		return err
	}
	w.last = w.now()
	w.pending = 0
	w.saves++
	return nil
}

// Discard removes the checkpoint at the normal end of a run.
func (w *Writer) Discard() error {
	w.pending = 0
	return w.store.Discard()
}

// Pending returns the number of units finished since the last save.
func (w *Writer) Pending() int {
	return w.pending
}

// Saves returns how many times the writer has saved.
func (w *Writer) Saves() int {
	return w.saves
}
