// Package history provides the linear undo/redo log backing the image editor.
package history

import (
	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
)

// History is a linear, branch-discarding undo/redo log of image buffers with a
// movable cursor. It always holds at least one entry; entry 0 is the seed the
// log was created or last reset with, and never changes afterwards.
//
// Undo and redo at the boundaries are defined as no-ops rather than errors so
// the API stays safe even when a caller forgets to gate on CanUndo/CanRedo.
type History struct {
	entries []*imaging.Buffer
	cursor  int
}

// New creates a history seeded with a single entry
func New(seed *imaging.Buffer) *History {
	return &History{entries: []*imaging.Buffer{seed}}
}

// Reset replaces the log with a single seed entry
func (h *History) Reset(seed *imaging.Buffer) {
	h.entries = []*imaging.Buffer{seed}
	h.cursor = 0
}

// Commit truncates any redo branch past the cursor and appends the next
// buffer, moving the cursor to it
func (h *History) Commit(next *imaging.Buffer) {
	h.entries = append(h.entries[:h.cursor+1], next)
	h.cursor = len(h.entries) - 1
}

// Undo moves the cursor back one entry and returns the buffer now at the
// cursor. At the oldest entry it returns that entry unchanged.
func (h *History) Undo() *imaging.Buffer {
	if h.cursor > 0 {
		h.cursor--
	}
	return h.entries[h.cursor]
}

// Redo moves the cursor forward one entry and returns the buffer now at the
// cursor. At the newest entry it returns that entry unchanged.
func (h *History) Redo() *imaging.Buffer {
	if h.cursor < len(h.entries)-1 {
		h.cursor++
	}
	return h.entries[h.cursor]
}

// CanUndo reports whether an earlier entry exists
func (h *History) CanUndo() bool {
	return h.cursor > 0
}

// CanRedo reports whether a later entry exists
func (h *History) CanRedo() bool {
	return h.cursor < len(h.entries)-1
}

// Current returns the buffer at the cursor
func (h *History) Current() *imaging.Buffer {
	return h.entries[h.cursor]
}

// Len returns the number of entries in the log
func (h *History) Len() int {
	return len(h.entries)
}
