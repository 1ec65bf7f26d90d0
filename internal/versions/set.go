// Package versions tracks the named variants of the wizard image and the
// current selection used downstream.
package versions

import (
	"errors"

	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
)

// ErrVersionUnavailable is returned when a named version is selected before it exists
var ErrVersionUnavailable = errors.New("requested image version is not available")

// Slot names one of the tracked image variants
type Slot string

const (
	SlotOriginal Slot = "original"
	SlotEdited   Slot = "edited"
	SlotEnhanced Slot = "enhanced"
	SlotUnknown  Slot = "unknown"
)

// Set holds the original, edited and enhanced variants of the session image
// plus the current selection. Current is always pointer-identical to one of
// the named slots; classification relies on buffers never being mutated in
// place, so every transform must allocate a fresh buffer.
type Set struct {
	original *imaging.Buffer
	edited   *imaging.Buffer
	enhanced *imaging.Buffer
	current  *imaging.Buffer
}

// Adopt starts a new editing session around a source image. All three live
// slots point at the source and any prior enhancement is dropped. The caller
// must also reset the edit history.
func (s *Set) Adopt(source *imaging.Buffer) {
	s.original = source
	s.edited = source
	s.current = source
	s.enhanced = nil
}

// RecordEdit stores a newly committed edit as both the edited and current
// version. Any prior enhancement was computed from different pixels and is
// dropped.
func (s *Set) RecordEdit(buf *imaging.Buffer) {
	s.edited = buf
	s.current = buf
	s.enhanced = nil
}

// RecordEnhanced stores the result of an enhancement call. The current
// selection is not changed; the user picks the enhanced version explicitly.
func (s *Set) RecordEnhanced(buf *imaging.Buffer) {
	s.enhanced = buf
}

// Select makes the named slot the current version and returns it
func (s *Set) Select(which Slot) (*imaging.Buffer, error) {
	switch which {
	case SlotOriginal:
		if s.original == nil {
			return nil, ErrVersionUnavailable
		}
		s.current = s.original
	case SlotEdited:
		if s.edited == nil {
			return nil, ErrVersionUnavailable
		}
		s.current = s.edited
	case SlotEnhanced:
		if s.enhanced == nil {
			return nil, ErrVersionUnavailable
		}
		s.current = s.enhanced
	default:
		return nil, ErrVersionUnavailable
	}
	return s.current, nil
}

// Classify reports which named slot a buffer occupies, by pointer identity.
// Original wins when slots alias the same buffer, which happens right after
// Adopt. Unknown is a legal outcome for a stale reference.
func (s *Set) Classify(buf *imaging.Buffer) Slot {
	switch {
	case buf == nil:
		return SlotUnknown
	case buf == s.original:
		return SlotOriginal
	case buf == s.edited:
		return SlotEdited
	case buf == s.enhanced:
		return SlotEnhanced
	default:
		return SlotUnknown
	}
}

// Get returns the buffer in the named slot without changing the selection
func (s *Set) Get(which Slot) *imaging.Buffer {
	switch which {
	case SlotOriginal:
		return s.original
	case SlotEdited:
		return s.edited
	case SlotEnhanced:
		return s.enhanced
	default:
		return nil
	}
}

// Current returns the selected version
func (s *Set) Current() *imaging.Buffer {
	return s.current
}

// Original returns the immutable session source
func (s *Set) Original() *imaging.Buffer {
	return s.original
}

// Edited returns the edited version
func (s *Set) Edited() *imaging.Buffer {
	return s.edited
}

// Enhanced returns the enhanced version, or nil before a successful enhance
func (s *Set) Enhanced() *imaging.Buffer {
	return s.enhanced
}

// HasEnhanced reports whether an enhanced version exists
func (s *Set) HasEnhanced() bool {
	return s.enhanced != nil
}

// Clear empties every slot, for a full wizard reset
func (s *Set) Clear() {
	s.original = nil
	s.edited = nil
	s.enhanced = nil
	s.current = nil
}
