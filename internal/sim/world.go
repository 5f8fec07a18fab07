package sim

import (
	"sync"
	"time"
)

// World is an in-memory execution environment. Token and vault writes
// are journaled so a failed call can be rolled back like an EVM revert.
type World struct {
	mu      sync.Mutex
	now     time.Time
	journal []func()
}

func NewWorld(start time.Time) *World {
	return &World{now: start}
}

// Now is the world clock. It only moves through Advance.
func (w *World) Now() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.now
}

func (w *World) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	w.mu.Lock()
	w.now = w.now.Add(d)
	w.mu.Unlock()
}

// Snapshot returns an id that RevertToSnapshot can roll back to.
func (w *World) Snapshot() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.journal)
}

// RevertToSnapshot undoes every journaled write made after id.
func (w *World) RevertToSnapshot(id int) {
	w.mu.Lock()
	if id < 0 || id > len(w.journal) {
		w.mu.Unlock()
		return
	}
	undo := make([]func(), len(w.journal)-id)
	copy(undo, w.journal[id:])
	w.journal = w.journal[:id]
	w.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// Atomic runs fn and reverts all journaled writes if it fails.
func (w *World) Atomic(fn func() error) error {
	id := w.Snapshot()
	if err := fn(); err != nil {
		w.RevertToSnapshot(id)
		return err
	}
	return nil
}

func (w *World) record(undo func()) {
	w.mu.Lock()
	w.journal = append(w.journal, undo)
	w.mu.Unlock()
}
