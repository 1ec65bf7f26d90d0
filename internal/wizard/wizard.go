// Package wizard implements the guided credential-capture workflow: a staged
// state machine over an image version set and an undo/redo edit history.
package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MiguelCortes1231/ocrFront/internal/history"
	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
	"github.com/MiguelCortes1231/ocrFront/internal/models"
	"github.com/MiguelCortes1231/ocrFront/internal/services"
	"github.com/MiguelCortes1231/ocrFront/internal/versions"
)

// Stage is one of the four ordered wizard phases
type Stage string

const (
	StageAcquire   Stage = "acquire"
	StageEdit      Stage = "edit"
	StagePreview   Stage = "preview"
	StageRecognize Stage = "recognize"
)

// stageOrder defines the forward progression of the wizard
var stageOrder = []Stage{StageAcquire, StageEdit, StagePreview, StageRecognize}

// ParseStage converts a request string to a Stage
func ParseStage(s string) (Stage, bool) {
	for _, stage := range stageOrder {
		if string(stage) == s {
			return stage, true
		}
	}
	return "", false
}

func stageIndex(s Stage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

var (
	// ErrBusy rejects a request while a conflicting operation is in flight.
	// Requests are rejected, never queued: interleaving commits would
	// corrupt the linear history.
	ErrBusy = errors.New("another operation is in progress")

	ErrNoImage       = errors.New("no valid image available")
	ErrWrongStage    = errors.New("operation not allowed in the current stage")
	ErrStageLocked   = errors.New("stage has not been reached yet")
	ErrBadTransition = errors.New("invalid stage transition")

	// ErrSessionReset reports that the session was reset while an operation
	// was in flight; the late result has been discarded.
	ErrSessionReset = errors.New("session was reset during the operation")
)

// Session is one user's pass through the wizard. All mutable state (stage,
// history, version set) is owned by the session and guarded by its mutex;
// long-running work (re-encodes, recognition calls) runs with the lock
// released under a single-flight busy flag, and an epoch counter discards
// results that complete after a reset.
type Session struct {
	ID     string
	UserID int

	mu            sync.Mutex
	stage         Stage
	unlocked      map[Stage]bool
	side          models.CredentialSide
	set           *versions.Set
	hist          *history.History
	fields        *models.RecognitionFields
	epoch         uint64
	transformBusy bool
	ocrBusy       bool
	enhanceBusy   bool

	ocrTimeout time.Duration
	createdAt  time.Time
	lastActive time.Time
}

func newSession(id string, userID int, ocrTimeout time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		UserID:     userID,
		stage:      StageAcquire,
		unlocked:   map[Stage]bool{StageAcquire: true},
		set:        &versions.Set{},
		ocrTimeout: ocrTimeout,
		createdAt:  now,
		lastActive: now,
	}
}

// State is a read-only snapshot of the session for clients
type State struct {
	ID             string                    `json:"id"`
	Stage          Stage                     `json:"stage"`
	Unlocked       []Stage                   `json:"unlocked"`
	Side           models.CredentialSide     `json:"side,omitempty"`
	HasImage       bool                      `json:"has_image"`
	Width          int                       `json:"width"`
	Height         int                       `json:"height"`
	CanUndo        bool                      `json:"can_undo"`
	CanRedo        bool                      `json:"can_redo"`
	HistoryLength  int                       `json:"history_length"`
	CurrentVersion versions.Slot             `json:"current_version"`
	HasEnhanced    bool                      `json:"has_enhanced"`
	Busy           bool                      `json:"busy"`
	Fields         *models.RecognitionFields `json:"fields,omitempty"`
}

// Snapshot returns the current session state
func (s *Session) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &State{
		ID:             s.ID,
		Stage:          s.stage,
		Side:           s.side,
		CurrentVersion: versions.SlotUnknown,
		Busy:           s.transformBusy || s.ocrBusy || s.enhanceBusy,
		Fields:         s.fields,
	}
	for _, stage := range stageOrder {
		if s.unlocked[stage] {
			st.Unlocked = append(st.Unlocked, stage)
		}
	}
	if cur := s.set.Current(); cur != nil {
		st.HasImage = true
		st.Width = cur.Width()
		st.Height = cur.Height()
		st.CurrentVersion = s.set.Classify(cur)
	}
	if s.hist != nil {
		st.CanUndo = s.hist.CanUndo()
		st.CanRedo = s.hist.CanRedo()
		st.HistoryLength = s.hist.Len()
	}
	st.HasEnhanced = s.set.HasEnhanced()
	return st
}

// AdoptSource seeds the session with a new source image and advances to the
// editing stage. Allowed while acquiring or editing; adopting a new source
// replaces the version set and the edit history wholesale.
func (s *Session) AdoptSource(source *imaging.Buffer, side models.CredentialSide) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.stage != StageAcquire && s.stage != StageEdit {
		return ErrWrongStage
	}
	if !source.Decoded() {
		return ErrNoImage
	}

	s.set.Adopt(source)
	s.hist = history.New(source)
	s.side = side
	s.fields = nil
	s.epoch++
	s.stage = StageEdit
	s.unlocked = map[Stage]bool{StageAcquire: true, StageEdit: true}
	return nil
}

// Rotate commits a rotation of the current image as a new history entry
func (s *Session) Rotate(degrees int) error {
	return s.transform(func(src *imaging.Buffer) (*imaging.Buffer, error) {
		return imaging.Rotate(src, degrees)
	})
}

// Crop commits a crop of the current image as a new history entry. The rect
// is given in the client's displayed coordinate space.
func (s *Session) Crop(rect imaging.Rect, displayWidth, displayHeight int) error {
	return s.transform(func(src *imaging.Buffer) (*imaging.Buffer, error) {
		return imaging.Crop(src, rect, displayWidth, displayHeight)
	})
}

// transform runs a single-flight edit commit: the source is captured under
// the lock, the re-encode runs unlocked, and the commit is discarded if the
// session was reset in the meantime.
func (s *Session) transform(apply func(*imaging.Buffer) (*imaging.Buffer, error)) error {
	s.mu.Lock()
	s.touch()
	if s.stage != StageEdit {
		s.mu.Unlock()
		return ErrWrongStage
	}
	if s.transformBusy {
		s.mu.Unlock()
		return ErrBusy
	}
	src := s.set.Current()
	if src == nil {
		s.mu.Unlock()
		return ErrNoImage
	}
	s.transformBusy = true
	epoch := s.epoch
	s.mu.Unlock()

	out, err := apply(src)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transformBusy = false
	if s.epoch != epoch {
		return ErrSessionReset
	}
	if err != nil {
		return err
	}
	s.hist.Commit(out)
	s.set.RecordEdit(out)
	return nil
}

// Undo steps the edit history back one entry. A no-op at the oldest entry.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.stage != StageEdit {
		return ErrWrongStage
	}
	if s.transformBusy {
		return ErrBusy
	}
	if s.hist == nil {
		return ErrNoImage
	}
	if !s.hist.CanUndo() {
		return nil
	}
	s.set.RecordEdit(s.hist.Undo())
	return nil
}

// Redo steps the edit history forward one entry. A no-op at the newest entry.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.stage != StageEdit {
		return ErrWrongStage
	}
	if s.transformBusy {
		return ErrBusy
	}
	if s.hist == nil {
		return ErrNoImage
	}
	if !s.hist.CanRedo() {
		return nil
	}
	s.set.RecordEdit(s.hist.Redo())
	return nil
}

// ResetToOriginal discards every edit and enhancement, keeping the stage.
// Available while editing or previewing.
func (s *Session) ResetToOriginal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.stage != StageEdit && s.stage != StagePreview {
		return ErrWrongStage
	}
	orig := s.set.Original()
	if orig == nil {
		return ErrNoImage
	}
	s.set.Adopt(orig)
	s.hist.Reset(orig)
	s.epoch++
	return nil
}

// Next advances the wizard one stage forward. Preview to Recognize only
// happens through Process.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch s.stage {
	case StageAcquire:
		if s.set.Current() == nil {
			return ErrNoImage
		}
		s.stage = StageEdit
		s.unlocked[StageEdit] = true
	case StageEdit:
		cur := s.set.Current()
		if cur == nil || !cur.Decoded() {
			return ErrNoImage
		}
		s.stage = StagePreview
		s.unlocked[StagePreview] = true
	default:
		return ErrBadTransition
	}
	return nil
}

// Back moves one stage backwards
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	idx := stageIndex(s.stage)
	if idx <= 0 {
		return ErrBadTransition
	}
	s.stage = stageOrder[idx-1]
	return nil
}

// GoTo jumps directly to a stage that has been reached before in this
// session. Forward jumps into locked stages are rejected.
func (s *Session) GoTo(stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if stageIndex(stage) < 0 {
		return ErrBadTransition
	}
	if !s.unlocked[stage] {
		return ErrStageLocked
	}
	s.stage = stage
	return nil
}

// SelectVersion makes a named image version the current one. Only meaningful
// while previewing.
func (s *Session) SelectVersion(which versions.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.stage != StagePreview {
		return ErrWrongStage
	}
	_, err := s.set.Select(which)
	return err
}

// Image returns the buffer in the named slot, or the current selection for
// SlotUnknown/"current" lookups done by the HTTP layer
func (s *Session) Image(which versions.Slot) (*imaging.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	var buf *imaging.Buffer
	if which == "" || which == "current" {
		buf = s.set.Current()
	} else {
		buf = s.set.Get(which)
	}
	if buf == nil {
		return nil, versions.ErrVersionUnavailable
	}
	return buf, nil
}

// Enhance asks the recognition collaborator for an improved rendition of the
// current image and stores it in the enhanced slot. The current selection is
// not changed; the user picks the enhanced version explicitly. Only available
// while previewing.
func (s *Session) Enhance(ctx context.Context, client services.OCRClient) error {
	s.mu.Lock()
	s.touch()
	if s.stage != StagePreview {
		s.mu.Unlock()
		return ErrWrongStage
	}
	if s.enhanceBusy {
		s.mu.Unlock()
		return ErrBusy
	}
	src := s.set.Current()
	if src == nil {
		s.mu.Unlock()
		return ErrNoImage
	}
	s.enhanceBusy = true
	epoch := s.epoch
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()
	enhanced, err := client.Enhance(callCtx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.enhanceBusy = false
	if s.epoch != epoch {
		return ErrSessionReset
	}
	if err != nil {
		return err
	}
	s.set.RecordEnhanced(enhanced)
	return nil
}

// Process submits the current image for recognition and, on success, stores
// the extracted fields and advances to the recognize stage. On failure the
// stage is unchanged so the user may retry. Returns the fields and the exact
// buffer that was submitted, for archiving.
func (s *Session) Process(ctx context.Context, client services.OCRClient) (*models.RecognitionFields, *imaging.Buffer, error) {
	s.mu.Lock()
	s.touch()
	if s.stage != StagePreview {
		s.mu.Unlock()
		return nil, nil, ErrWrongStage
	}
	if s.ocrBusy {
		s.mu.Unlock()
		return nil, nil, ErrBusy
	}
	src := s.set.Current()
	if src == nil || !src.Decoded() {
		s.mu.Unlock()
		return nil, nil, ErrNoImage
	}
	side := s.side
	s.ocrBusy = true
	epoch := s.epoch
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()

	fields := &models.RecognitionFields{Side: side}
	var err error
	if side == models.SideBack {
		fields.Back, err = client.ProcessBack(callCtx, src)
	} else {
		fields.Front, err = client.ProcessFront(callCtx, src)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ocrBusy = false
	if s.epoch != epoch {
		return nil, nil, ErrSessionReset
	}
	if err != nil {
		return nil, nil, err
	}
	s.fields = fields
	s.stage = StageRecognize
	s.unlocked[StageRecognize] = true
	return fields, src, nil
}

// Reset returns the session to the acquire stage, clearing the version set,
// the edit history and any recognized fields
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.set.Clear()
	s.hist = nil
	s.fields = nil
	s.side = ""
	s.stage = StageAcquire
	s.unlocked = map[Stage]bool{StageAcquire: true}
	s.epoch++
}

// Fields returns the recognized fields, or nil before a successful Process
func (s *Session) Fields() *models.RecognitionFields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fields
}

// Side returns the credential side selected at adoption
func (s *Session) Side() models.CredentialSide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.side
}

// touch records activity for idle expiry. Caller holds the lock.
func (s *Session) touch() {
	s.lastActive = time.Now()
}

// idleSince reports the last activity time
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
