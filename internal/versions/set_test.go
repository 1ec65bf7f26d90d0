package versions

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
)

func makeBuffer(t *testing.T) *imaging.Buffer {
	t.Helper()

	var enc bytes.Buffer
	if err := png.Encode(&enc, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	buf, err := imaging.Decode(enc.Bytes(), "image/png")
	if err != nil {
		t.Fatalf("failed to decode test image: %v", err)
	}
	return buf
}

func TestAdopt(t *testing.T) {
	source, stale := makeBuffer(t), makeBuffer(t)
	s := &Set{}
	s.RecordEnhanced(stale)

	s.Adopt(source)

	if s.Original() != source || s.Edited() != source || s.Current() != source {
		t.Error("Adopt() did not point every live slot at the source")
	}
	if s.HasEnhanced() {
		t.Error("HasEnhanced() = true after Adopt(), want false")
	}
}

func TestRecordEditClearsEnhanced(t *testing.T) {
	source, enhanced, edit := makeBuffer(t), makeBuffer(t), makeBuffer(t)
	s := &Set{}
	s.Adopt(source)
	s.RecordEnhanced(enhanced)

	s.RecordEdit(edit)

	if s.Edited() != edit {
		t.Error("Edited() != committed edit")
	}
	if s.Current() != edit {
		t.Error("Current() != committed edit")
	}
	if s.Original() != source {
		t.Error("Original() changed on edit")
	}
	if s.HasEnhanced() {
		t.Error("HasEnhanced() = true after an edit, want false")
	}
}

func TestRecordEnhancedKeepsSelection(t *testing.T) {
	source, enhanced := makeBuffer(t), makeBuffer(t)
	s := &Set{}
	s.Adopt(source)

	s.RecordEnhanced(enhanced)

	if s.Current() != source {
		t.Error("RecordEnhanced() changed the current selection")
	}
	if s.Enhanced() != enhanced {
		t.Error("Enhanced() != recorded buffer")
	}
}

func TestSelect(t *testing.T) {
	source, edit, enhanced := makeBuffer(t), makeBuffer(t), makeBuffer(t)
	s := &Set{}
	s.Adopt(source)
	s.RecordEdit(edit)
	s.RecordEnhanced(enhanced)

	tests := []struct {
		slot Slot
		want *imaging.Buffer
	}{
		{SlotOriginal, source},
		{SlotEdited, edit},
		{SlotEnhanced, enhanced},
	}

	for _, tt := range tests {
		got, err := s.Select(tt.slot)
		if err != nil {
			t.Fatalf("Select(%q) error = %v", tt.slot, err)
		}
		if got != tt.want {
			t.Errorf("Select(%q) returned the wrong buffer", tt.slot)
		}
		if s.Current() != tt.want {
			t.Errorf("Current() after Select(%q) is not the selected buffer", tt.slot)
		}
	}
}

func TestSelectUnavailable(t *testing.T) {
	source := makeBuffer(t)
	s := &Set{}
	s.Adopt(source)

	// No enhancement has been recorded yet
	if _, err := s.Select(SlotEnhanced); !errors.Is(err, ErrVersionUnavailable) {
		t.Errorf("Select(enhanced) error = %v, want %v", err, ErrVersionUnavailable)
	}
	if s.Current() != source {
		t.Error("failed Select() changed the current selection")
	}

	if _, err := s.Select(Slot("bogus")); !errors.Is(err, ErrVersionUnavailable) {
		t.Errorf("Select(bogus) error = %v, want %v", err, ErrVersionUnavailable)
	}

	empty := &Set{}
	if _, err := empty.Select(SlotOriginal); !errors.Is(err, ErrVersionUnavailable) {
		t.Errorf("Select(original) on empty set error = %v, want %v", err, ErrVersionUnavailable)
	}
}

func TestClassify(t *testing.T) {
	source, edit, enhanced, stranger := makeBuffer(t), makeBuffer(t), makeBuffer(t), makeBuffer(t)
	s := &Set{}
	s.Adopt(source)

	// Right after Adopt every slot aliases the source; original wins
	if got := s.Classify(source); got != SlotOriginal {
		t.Errorf("Classify(source) = %q, want %q", got, SlotOriginal)
	}

	s.RecordEdit(edit)
	s.RecordEnhanced(enhanced)

	tests := []struct {
		name string
		buf  *imaging.Buffer
		want Slot
	}{
		{"original", source, SlotOriginal},
		{"edited", edit, SlotEdited},
		{"enhanced", enhanced, SlotEnhanced},
		{"stale reference", stranger, SlotUnknown},
		{"nil", nil, SlotUnknown},
	}

	for _, tt := range tests {
		if got := s.Classify(tt.buf); got != tt.want {
			t.Errorf("Classify(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClear(t *testing.T) {
	s := &Set{}
	s.Adopt(makeBuffer(t))
	s.RecordEnhanced(makeBuffer(t))

	s.Clear()

	if s.Original() != nil || s.Edited() != nil || s.Enhanced() != nil || s.Current() != nil {
		t.Error("Clear() left a slot populated")
	}
}
