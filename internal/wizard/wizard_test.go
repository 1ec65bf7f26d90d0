package wizard

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
	"github.com/MiguelCortes1231/ocrFront/internal/models"
	"github.com/MiguelCortes1231/ocrFront/internal/services"
	"github.com/MiguelCortes1231/ocrFront/internal/versions"
)

// fakeOCRClient is a scriptable recognition collaborator. When block is
// non-nil the call signals started and waits for release or context expiry.
type fakeOCRClient struct {
	front    *models.FrontFields
	back     *models.BackFields
	enhanced *imaging.Buffer
	err      error

	block   chan struct{}
	started chan struct{}

	frontCalls int
	backCalls  int
}

func (c *fakeOCRClient) wait(ctx context.Context) error {
	if c.block == nil {
		return nil
	}
	if c.started != nil {
		c.started <- struct{}{}
	}
	select {
	case <-c.block:
		return nil
	case <-ctx.Done():
		return services.ErrOCRTimeout
	}
}

func (c *fakeOCRClient) ProcessFront(ctx context.Context, image *imaging.Buffer) (*models.FrontFields, error) {
	c.frontCalls++
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.front, c.err
}

func (c *fakeOCRClient) ProcessBack(ctx context.Context, image *imaging.Buffer) (*models.BackFields, error) {
	c.backCalls++
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.back, c.err
}

func (c *fakeOCRClient) Enhance(ctx context.Context, image *imaging.Buffer) (*imaging.Buffer, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.enhanced, c.err
}

func makeBuffer(t *testing.T, w, h int) *imaging.Buffer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var enc bytes.Buffer
	if err := png.Encode(&enc, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	buf, err := imaging.Decode(enc.Bytes(), "image/png")
	if err != nil {
		t.Fatalf("failed to decode test image: %v", err)
	}
	return buf
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewManager(time.Hour, time.Second).Create(1)
}

// editSession returns a session seeded with a source and sitting in the edit
// stage
func editSession(t *testing.T, w, h int) (*Session, *imaging.Buffer) {
	t.Helper()
	s := newTestSession(t)
	src := makeBuffer(t, w, h)
	if err := s.AdoptSource(src, models.SideFront); err != nil {
		t.Fatalf("AdoptSource() error = %v", err)
	}
	return s, src
}

func TestAdoptSourceAdvancesToEdit(t *testing.T) {
	s, src := editSession(t, 40, 30)

	st := s.Snapshot()
	if st.Stage != StageEdit {
		t.Errorf("stage = %q, want %q", st.Stage, StageEdit)
	}
	if !st.HasImage || st.Width != 40 || st.Height != 30 {
		t.Errorf("snapshot image = %v %dx%d, want 40x30", st.HasImage, st.Width, st.Height)
	}
	if st.CurrentVersion != versions.SlotOriginal {
		t.Errorf("current version = %q, want %q", st.CurrentVersion, versions.SlotOriginal)
	}
	if got, err := s.Image(versions.SlotOriginal); err != nil || got != src {
		t.Errorf("Image(original) = %v, %v, want adopted source", got, err)
	}
}

func TestAdoptSourceGuards(t *testing.T) {
	s := newTestSession(t)

	if err := s.AdoptSource(&imaging.Buffer{}, models.SideFront); !errors.Is(err, ErrNoImage) {
		t.Errorf("AdoptSource(undecoded) error = %v, want %v", err, ErrNoImage)
	}

	// Re-acquiring is allowed while editing, rejected later
	src := makeBuffer(t, 10, 10)
	if err := s.AdoptSource(src, models.SideFront); err != nil {
		t.Fatalf("AdoptSource() error = %v", err)
	}
	if err := s.AdoptSource(makeBuffer(t, 10, 10), models.SideBack); err != nil {
		t.Errorf("AdoptSource() while editing error = %v, want nil", err)
	}

	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if err := s.AdoptSource(makeBuffer(t, 10, 10), models.SideFront); !errors.Is(err, ErrWrongStage) {
		t.Errorf("AdoptSource() while previewing error = %v, want %v", err, ErrWrongStage)
	}
}

func TestAdoptSourceReplacesState(t *testing.T) {
	s, _ := editSession(t, 40, 30)
	if err := s.Rotate(90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	next := makeBuffer(t, 20, 20)
	if err := s.AdoptSource(next, models.SideBack); err != nil {
		t.Fatalf("AdoptSource() error = %v", err)
	}

	st := s.Snapshot()
	if st.CanUndo {
		t.Error("CanUndo = true after re-adoption, want false")
	}
	if st.Width != 20 || st.Height != 20 {
		t.Errorf("dimensions = %dx%d, want 20x20", st.Width, st.Height)
	}
	if s.Side() != models.SideBack {
		t.Errorf("Side() = %q, want %q", s.Side(), models.SideBack)
	}
}

func TestRotateCommitsEdit(t *testing.T) {
	s, _ := editSession(t, 40, 30)

	if err := s.Rotate(90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	st := s.Snapshot()
	if st.Width != 30 || st.Height != 40 {
		t.Errorf("dimensions = %dx%d, want 30x40", st.Width, st.Height)
	}
	if !st.CanUndo || st.CanRedo {
		t.Errorf("CanUndo/CanRedo = %v/%v, want true/false", st.CanUndo, st.CanRedo)
	}
	if st.CurrentVersion != versions.SlotEdited {
		t.Errorf("current version = %q, want %q", st.CurrentVersion, versions.SlotEdited)
	}
	if st.HistoryLength != 2 {
		t.Errorf("history length = %d, want 2", st.HistoryLength)
	}
}

func TestCropCommitsEdit(t *testing.T) {
	s, _ := editSession(t, 100, 80)

	err := s.Crop(imaging.Rect{X: 10, Y: 10, Width: 20, Height: 15}, 50, 40)
	if err != nil {
		t.Fatalf("Crop() error = %v", err)
	}

	st := s.Snapshot()
	if st.Width != 40 || st.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 40x30", st.Width, st.Height)
	}
}

func TestTransformGuards(t *testing.T) {
	s := newTestSession(t)

	// No image yet and wrong stage
	if err := s.Rotate(90); !errors.Is(err, ErrWrongStage) {
		t.Errorf("Rotate() while acquiring error = %v, want %v", err, ErrWrongStage)
	}

	s, _ = editSession(t, 40, 30)
	if err := s.Crop(imaging.Rect{}, 40, 30); !errors.Is(err, imaging.ErrEmptySelection) {
		t.Errorf("Crop(empty) error = %v, want %v", err, imaging.ErrEmptySelection)
	}
	// Failed edit leaves the history untouched
	if st := s.Snapshot(); st.CanUndo {
		t.Error("CanUndo = true after a failed edit, want false")
	}
}

func TestTransformBusyRejected(t *testing.T) {
	s, _ := editSession(t, 40, 30)

	s.mu.Lock()
	s.transformBusy = true
	s.mu.Unlock()

	if err := s.Rotate(90); !errors.Is(err, ErrBusy) {
		t.Errorf("Rotate() while busy error = %v, want %v", err, ErrBusy)
	}
	if err := s.Undo(); !errors.Is(err, ErrBusy) {
		t.Errorf("Undo() while busy error = %v, want %v", err, ErrBusy)
	}
}

func TestUndoRedo(t *testing.T) {
	s, src := editSession(t, 40, 30)
	if err := s.Rotate(90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	cur, err := s.Image("")
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if cur != src {
		t.Error("current after Undo() != adopted source")
	}
	if st := s.Snapshot(); !st.CanRedo {
		t.Error("CanRedo = false after Undo(), want true")
	}

	if err := s.Redo(); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if st := s.Snapshot(); st.Width != 30 || st.Height != 40 {
		t.Errorf("dimensions after Redo() = %dx%d, want 30x40", st.Width, st.Height)
	}
}

func TestUndoBoundaryKeepsEnhanced(t *testing.T) {
	s, _ := editSession(t, 40, 30)

	// A boundary undo is a no-op and must not count as an edit
	s.mu.Lock()
	s.set.RecordEnhanced(makeBuffer(t, 40, 30))
	s.mu.Unlock()

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if st := s.Snapshot(); !st.HasEnhanced {
		t.Error("boundary Undo() dropped the enhanced version")
	}
}

func TestUndoClearsEnhanced(t *testing.T) {
	s, _ := editSession(t, 40, 30)
	if err := s.Rotate(90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	s.mu.Lock()
	s.set.RecordEnhanced(makeBuffer(t, 40, 30))
	s.mu.Unlock()

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if st := s.Snapshot(); st.HasEnhanced {
		t.Error("Undo() kept an enhanced version computed from different pixels")
	}
}

func TestResetToOriginal(t *testing.T) {
	s, src := editSession(t, 40, 30)
	if err := s.Rotate(90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	if err := s.ResetToOriginal(); err != nil {
		t.Fatalf("ResetToOriginal() error = %v", err)
	}

	cur, err := s.Image("")
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if cur != src {
		t.Error("current after ResetToOriginal() != adopted source")
	}
	st := s.Snapshot()
	if st.CanUndo || st.CanRedo {
		t.Error("edit history survived ResetToOriginal()")
	}
	if st.Stage != StageEdit {
		t.Errorf("stage = %q, want %q", st.Stage, StageEdit)
	}
}

func TestStageNavigation(t *testing.T) {
	s := newTestSession(t)

	if err := s.Next(); !errors.Is(err, ErrNoImage) {
		t.Errorf("Next() without image error = %v, want %v", err, ErrNoImage)
	}
	if err := s.Back(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("Back() at the first stage error = %v, want %v", err, ErrBadTransition)
	}
	if err := s.GoTo(StagePreview); !errors.Is(err, ErrStageLocked) {
		t.Errorf("GoTo(preview) before unlock error = %v, want %v", err, ErrStageLocked)
	}
	if err := s.GoTo(Stage("bogus")); !errors.Is(err, ErrBadTransition) {
		t.Errorf("GoTo(bogus) error = %v, want %v", err, ErrBadTransition)
	}

	if err := s.AdoptSource(makeBuffer(t, 10, 10), models.SideFront); err != nil {
		t.Fatalf("AdoptSource() error = %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if st := s.Snapshot(); st.Stage != StagePreview {
		t.Errorf("stage = %q, want %q", st.Stage, StagePreview)
	}

	// Preview to recognize only happens through Process
	if err := s.Next(); !errors.Is(err, ErrBadTransition) {
		t.Errorf("Next() from preview error = %v, want %v", err, ErrBadTransition)
	}

	if err := s.Back(); err != nil {
		t.Fatalf("Back() error = %v", err)
	}
	if st := s.Snapshot(); st.Stage != StageEdit {
		t.Errorf("stage after Back() = %q, want %q", st.Stage, StageEdit)
	}

	// Preview was unlocked, so jumping forward again is allowed
	if err := s.GoTo(StagePreview); err != nil {
		t.Errorf("GoTo(preview) after unlock error = %v", err)
	}
}

func TestSelectVersion(t *testing.T) {
	s, _ := editSession(t, 40, 30)
	if err := s.SelectVersion(versions.SlotOriginal); !errors.Is(err, ErrWrongStage) {
		t.Errorf("SelectVersion() while editing error = %v, want %v", err, ErrWrongStage)
	}

	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if err := s.SelectVersion(versions.SlotEnhanced); !errors.Is(err, versions.ErrVersionUnavailable) {
		t.Errorf("SelectVersion(enhanced) error = %v, want %v", err, versions.ErrVersionUnavailable)
	}
	if err := s.SelectVersion(versions.SlotOriginal); err != nil {
		t.Errorf("SelectVersion(original) error = %v", err)
	}
}

func TestEnhance(t *testing.T) {
	s, src := editSession(t, 40, 30)
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	enhanced := makeBuffer(t, 40, 30)
	client := &fakeOCRClient{enhanced: enhanced}

	if err := s.Enhance(context.Background(), client); err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}

	st := s.Snapshot()
	if !st.HasEnhanced {
		t.Error("HasEnhanced = false after Enhance()")
	}
	// The selection does not move until the user picks it
	cur, err := s.Image("")
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if cur != src {
		t.Error("Enhance() changed the current selection")
	}

	if err := s.SelectVersion(versions.SlotEnhanced); err != nil {
		t.Fatalf("SelectVersion(enhanced) error = %v", err)
	}
	cur, err = s.Image("")
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if cur != enhanced {
		t.Error("current after selecting enhanced != enhanced buffer")
	}
}

func TestEnhanceWrongStage(t *testing.T) {
	s, _ := editSession(t, 40, 30)
	client := &fakeOCRClient{enhanced: makeBuffer(t, 40, 30)}

	if err := s.Enhance(context.Background(), client); !errors.Is(err, ErrWrongStage) {
		t.Errorf("Enhance() while editing error = %v, want %v", err, ErrWrongStage)
	}
}

func TestProcessFront(t *testing.T) {
	s, src := editSession(t, 40, 30)
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	client := &fakeOCRClient{front: &models.FrontFields{FullName: "JUANA PEREZ GARCIA", ValidCredential: true}}

	fields, submitted, err := s.Process(context.Background(), client)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if fields.Side != models.SideFront || fields.Front == nil || fields.Front.FullName != "JUANA PEREZ GARCIA" {
		t.Errorf("Process() fields = %+v, want front fields", fields)
	}
	if submitted != src {
		t.Error("Process() submitted buffer != current selection")
	}
	if client.frontCalls != 1 || client.backCalls != 0 {
		t.Errorf("client calls front/back = %d/%d, want 1/0", client.frontCalls, client.backCalls)
	}

	st := s.Snapshot()
	if st.Stage != StageRecognize {
		t.Errorf("stage = %q, want %q", st.Stage, StageRecognize)
	}
	if st.Fields == nil {
		t.Error("snapshot fields missing after Process()")
	}
}

func TestProcessBackDispatch(t *testing.T) {
	s := newTestSession(t)
	if err := s.AdoptSource(makeBuffer(t, 40, 30), models.SideBack); err != nil {
		t.Fatalf("AdoptSource() error = %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	client := &fakeOCRClient{back: &models.BackFields{GivenNames: "JUANA"}}

	fields, _, err := s.Process(context.Background(), client)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if fields.Side != models.SideBack || fields.Back == nil {
		t.Errorf("Process() fields = %+v, want back fields", fields)
	}
	if client.backCalls != 1 || client.frontCalls != 0 {
		t.Errorf("client calls front/back = %d/%d, want 0/1", client.frontCalls, client.backCalls)
	}
}

func TestProcessFailureKeepsStage(t *testing.T) {
	s, _ := editSession(t, 40, 30)
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	client := &fakeOCRClient{err: services.ErrOCRFailed}

	if _, _, err := s.Process(context.Background(), client); !errors.Is(err, services.ErrOCRFailed) {
		t.Errorf("Process() error = %v, want %v", err, services.ErrOCRFailed)
	}

	st := s.Snapshot()
	if st.Stage != StagePreview {
		t.Errorf("stage after failed Process() = %q, want %q", st.Stage, StagePreview)
	}
	if st.Fields != nil {
		t.Error("failed Process() stored fields")
	}
}

func TestProcessTimeout(t *testing.T) {
	m := NewManager(time.Hour, 20*time.Millisecond)
	s := m.Create(1)
	if err := s.AdoptSource(makeBuffer(t, 40, 30), models.SideFront); err != nil {
		t.Fatalf("AdoptSource() error = %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	// The client never answers; the per-call budget must expire
	client := &fakeOCRClient{block: make(chan struct{})}

	if _, _, err := s.Process(context.Background(), client); !errors.Is(err, services.ErrOCRTimeout) {
		t.Errorf("Process() error = %v, want %v", err, services.ErrOCRTimeout)
	}
	if st := s.Snapshot(); st.Stage != StagePreview {
		t.Errorf("stage after timeout = %q, want %q", st.Stage, StagePreview)
	}
}

func TestProcessBusyRejected(t *testing.T) {
	s, _ := editSession(t, 40, 30)
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	client := &fakeOCRClient{
		front:   &models.FrontFields{},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Process(context.Background(), client)
		done <- err
	}()
	<-client.started

	if _, _, err := s.Process(context.Background(), &fakeOCRClient{front: &models.FrontFields{}}); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Process() error = %v, want %v", err, ErrBusy)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Errorf("first Process() error = %v", err)
	}
}

func TestProcessDiscardedAfterReset(t *testing.T) {
	s, _ := editSession(t, 40, 30)
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	client := &fakeOCRClient{
		front:   &models.FrontFields{FullName: "STALE"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := s.Process(context.Background(), client)
		done <- err
	}()
	<-client.started

	// The user starts over while recognition is in flight
	s.Reset()
	close(client.block)

	if err := <-done; !errors.Is(err, ErrSessionReset) {
		t.Errorf("Process() after reset error = %v, want %v", err, ErrSessionReset)
	}

	st := s.Snapshot()
	if st.Stage != StageAcquire {
		t.Errorf("stage = %q, want %q", st.Stage, StageAcquire)
	}
	if st.Fields != nil {
		t.Error("stale recognition result was stored after reset")
	}
}

func TestReset(t *testing.T) {
	s, _ := editSession(t, 40, 30)
	if err := s.Rotate(90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	s.Reset()

	st := s.Snapshot()
	if st.Stage != StageAcquire {
		t.Errorf("stage = %q, want %q", st.Stage, StageAcquire)
	}
	if st.HasImage || st.CanUndo || st.CanRedo || st.Fields != nil {
		t.Errorf("Reset() left state behind: %+v", st)
	}
	if _, err := s.Image(""); !errors.Is(err, versions.ErrVersionUnavailable) {
		t.Errorf("Image() after Reset() error = %v, want %v", err, versions.ErrVersionUnavailable)
	}
}

func TestFullPass(t *testing.T) {
	s, _ := editSession(t, 100, 80)

	if err := s.Rotate(90); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if err := s.Crop(imaging.Rect{X: 5, Y: 5, Width: 40, Height: 30}, 80, 100); err != nil {
		t.Fatalf("Crop() error = %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	client := &fakeOCRClient{
		enhanced: makeBuffer(t, 40, 30),
		front:    &models.FrontFields{FullName: "JUANA PEREZ GARCIA", CURP: "PEGJ800101MDFRRN09"},
	}
	if err := s.Enhance(context.Background(), client); err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}
	if err := s.SelectVersion(versions.SlotEnhanced); err != nil {
		t.Fatalf("SelectVersion() error = %v", err)
	}

	fields, submitted, err := s.Process(context.Background(), client)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if submitted != client.enhanced {
		t.Error("Process() did not submit the selected enhanced version")
	}
	if fields.Front.CURP != "PEGJ800101MDFRRN09" {
		t.Errorf("CURP = %q, want recognized value", fields.Front.CURP)
	}
	if st := s.Snapshot(); st.Stage != StageRecognize {
		t.Errorf("stage = %q, want %q", st.Stage, StageRecognize)
	}
}
