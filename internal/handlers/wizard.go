package handlers

import (
	"errors"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/MiguelCortes1231/ocrFront/internal/config"
	"github.com/MiguelCortes1231/ocrFront/internal/database"
	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
	"github.com/MiguelCortes1231/ocrFront/internal/middleware"
	"github.com/MiguelCortes1231/ocrFront/internal/models"
	"github.com/MiguelCortes1231/ocrFront/internal/services"
	"github.com/MiguelCortes1231/ocrFront/internal/versions"
	"github.com/MiguelCortes1231/ocrFront/internal/wizard"
)

// WizardHandler handles the credential-capture wizard endpoints
type WizardHandler struct {
	db      *database.DB
	cfg     *config.Config
	manager *wizard.Manager
	ocr     services.OCRClient
	storage *services.StorageService
}

// NewWizardHandler creates a new wizard handler. storage may be nil when
// archiving is disabled.
func NewWizardHandler(
	db *database.DB,
	cfg *config.Config,
	manager *wizard.Manager,
	ocr services.OCRClient,
	storage *services.StorageService,
) *WizardHandler {
	return &WizardHandler{
		db:      db,
		cfg:     cfg,
		manager: manager,
		ocr:     ocr,
		storage: storage,
	}
}

// CreateSession starts a new wizard session
func (h *WizardHandler) CreateSession(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	session := h.manager.Create(userID)
	return c.Status(fiber.StatusCreated).JSON(APIResponse{
		Success: true,
		Data:    session.Snapshot(),
	})
}

// GetSession returns the session state snapshot
func (h *WizardHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// DeleteSession resets and discards a session
func (h *WizardHandler) DeleteSession(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}
	session.Reset()
	h.manager.Remove(session.ID)
	return Success(c, fiber.Map{"deleted": true})
}

// UploadSource accepts a credential photo and seeds the editing session
func (h *WizardHandler) UploadSource(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "image file is required")
	}

	// Validate file type
	contentType := file.Header.Get("Content-Type")
	if !imaging.IsSupportedType(contentType) {
		return Error(c, fiber.StatusBadRequest, "invalid image type. Supported: JPEG, PNG, WebP")
	}

	// Validate file size before reading anything
	if file.Size > imaging.MaxSourceBytes {
		return Error(c, fiber.StatusBadRequest, "file too large. Maximum size is 10MB")
	}

	side := models.CredentialSide(c.FormValue("side", string(models.SideFront)))
	if !side.Valid() {
		return Error(c, fiber.StatusBadRequest, "side must be front or back")
	}

	src, err := file.Open()
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read file")
	}
	defer src.Close()

	imageBytes, err := io.ReadAll(src)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read file")
	}

	buf, err := imaging.Decode(imageBytes, contentType)
	if err != nil {
		return h.wizardError(c, err)
	}

	if err := session.AdoptSource(buf, side); err != nil {
		return h.wizardError(c, err)
	}

	return Success(c, session.Snapshot())
}

// Rotate commits a rotation of the current image
func (h *WizardHandler) Rotate(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}

	var req models.RotateRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := session.Rotate(req.Degrees); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// Crop commits a crop of the current image
func (h *WizardHandler) Crop(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}

	var req models.CropRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	rect := imaging.Rect{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}
	if err := session.Crop(rect, req.DisplayWidth, req.DisplayHeight); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// Undo steps the edit history back one entry
func (h *WizardHandler) Undo(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}
	if err := session.Undo(); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// Redo steps the edit history forward one entry
func (h *WizardHandler) Redo(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}
	if err := session.Redo(); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// Revert discards all edits, returning to the original image
func (h *WizardHandler) Revert(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}
	if err := session.ResetToOriginal(); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// Next advances the wizard one stage
func (h *WizardHandler) Next(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}
	if err := session.Next(); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// Back moves the wizard one stage backwards
func (h *WizardHandler) Back(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}
	if err := session.Back(); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// GoToStage jumps to a previously unlocked stage
func (h *WizardHandler) GoToStage(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}

	var req models.StageRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	stage, ok := wizard.ParseStage(req.Stage)
	if !ok {
		return Error(c, fiber.StatusBadRequest, "unknown stage")
	}

	if err := session.GoTo(stage); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// SelectVersion picks a named image version as current
func (h *WizardHandler) SelectVersion(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}

	var req models.SelectVersionRequest
	if err := c.BodyParser(&req); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := session.SelectVersion(versions.Slot(req.Version)); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// GetImage streams a named version of the session image
func (h *WizardHandler) GetImage(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}

	buf, err := session.Image(versions.Slot(c.Query("version", "current")))
	if err != nil {
		return h.wizardError(c, err)
	}

	c.Set(fiber.HeaderContentType, buf.MIME())
	return c.Send(buf.Bytes())
}

// Enhance requests an improved rendition of the current image
func (h *WizardHandler) Enhance(c *fiber.Ctx) error {
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}

	if err := session.Enhance(c.Context(), h.ocr); err != nil {
		return h.wizardError(c, err)
	}
	return Success(c, session.Snapshot())
}

// Process submits the current image for recognition and persists the result
func (h *WizardHandler) Process(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	session, err := h.session(c)
	if err != nil {
		return h.wizardError(c, err)
	}

	fields, submitted, err := session.Process(c.Context(), h.ocr)
	if err != nil {
		return h.wizardError(c, err)
	}

	req := &models.CreateRecognitionRequest{
		UserID: userID,
		Side:   fields.Side,
		Status: models.RecognitionStatusCompleted,
		Fields: fields,
	}

	// Archive the submitted image when storage is configured
	if h.storage != nil {
		upload, err := h.storage.ArchiveCapture(c.Context(), userID, submitted)
		if err != nil {
			log.Printf("Warning: Failed to archive capture for user %d: %v", userID, err)
		} else {
			req.S3Bucket = &upload.Bucket
			req.S3Key = &upload.Key
			req.ContentType = &upload.ContentType
		}
	}

	recognition, err := h.db.CreateRecognition(c.Context(), req)
	if err != nil {
		log.Printf("Warning: Failed to persist recognition for user %d: %v", userID, err)
		// The wizard result is still valid; return it without the record
		return Success(c, fiber.Map{
			"state":  session.Snapshot(),
			"fields": fields,
		})
	}

	return Success(c, fiber.Map{
		"state":       session.Snapshot(),
		"fields":      fields,
		"recognition": recognition,
	})
}

// session resolves the session from the URL, scoped to the caller
func (h *WizardHandler) session(c *fiber.Ctx) (*wizard.Session, error) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return nil, wizard.ErrSessionNotFound
	}
	return h.manager.Get(c.Params("id"), userID)
}

// wizardError maps core and collaborator errors onto HTTP responses. Every
// failure leaves the session in its pre-call stage; nothing here is fatal.
func (h *WizardHandler) wizardError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		return Error(c, fiber.StatusNotFound, "wizard session not found")
	case errors.Is(err, wizard.ErrBusy):
		return Error(c, fiber.StatusConflict, "another operation is in progress, try again")
	case errors.Is(err, wizard.ErrSessionReset):
		return Error(c, fiber.StatusConflict, "session was reset during the operation")
	case errors.Is(err, wizard.ErrWrongStage):
		return Error(c, fiber.StatusConflict, "operation not allowed in the current stage")
	case errors.Is(err, wizard.ErrBadTransition):
		return Error(c, fiber.StatusConflict, "invalid stage transition")
	case errors.Is(err, wizard.ErrStageLocked):
		return Error(c, fiber.StatusConflict, "stage has not been reached yet")
	case errors.Is(err, wizard.ErrNoImage):
		return Error(c, fiber.StatusBadRequest, "no valid image available")
	case errors.Is(err, imaging.ErrSourceTooLarge):
		return Error(c, fiber.StatusBadRequest, "file too large. Maximum size is 10MB")
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return Error(c, fiber.StatusBadRequest, "invalid image type. Supported: JPEG, PNG, WebP")
	case errors.Is(err, imaging.ErrInvalidImage):
		return Error(c, fiber.StatusBadRequest, "image could not be decoded")
	case errors.Is(err, imaging.ErrSourceNotReady):
		return Error(c, fiber.StatusBadRequest, "image has not finished decoding")
	case errors.Is(err, imaging.ErrEmptySelection):
		return Error(c, fiber.StatusBadRequest, "crop selection is empty")
	case errors.Is(err, imaging.ErrRenderFailed):
		return Error(c, fiber.StatusInternalServerError, "failed to render image, try again")
	case errors.Is(err, versions.ErrVersionUnavailable):
		return Error(c, fiber.StatusBadRequest, "requested image version is not available")
	case errors.Is(err, services.ErrOCRTimeout):
		return Error(c, fiber.StatusGatewayTimeout, "recognition timed out, retry with a clearer image")
	case errors.Is(err, services.ErrOCRUnauthorized):
		return Error(c, fiber.StatusUnauthorized, "recognition service rejected the credentials, sign in again")
	default:
		return Error(c, fiber.StatusInternalServerError, "operation failed")
	}
}
