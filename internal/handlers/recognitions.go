package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MiguelCortes1231/ocrFront/internal/config"
	"github.com/MiguelCortes1231/ocrFront/internal/database"
	"github.com/MiguelCortes1231/ocrFront/internal/middleware"
	"github.com/MiguelCortes1231/ocrFront/internal/models"
	"github.com/MiguelCortes1231/ocrFront/internal/services"
)

// RecognitionHandler handles stored recognition results
type RecognitionHandler struct {
	db      *database.DB
	cfg     *config.Config
	storage *services.StorageService
}

// NewRecognitionHandler creates a new recognition handler. storage may be nil
// when archiving is disabled.
func NewRecognitionHandler(db *database.DB, cfg *config.Config, storage *services.StorageService) *RecognitionHandler {
	return &RecognitionHandler{
		db:      db,
		cfg:     cfg,
		storage: storage,
	}
}

// ListRecognitions returns a paginated list of the user's recognitions
func (h *RecognitionHandler) ListRecognitions(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	params := &models.RecognitionListParams{
		UserID: userID,
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}

	if side := c.Query("side"); side != "" {
		if !models.CredentialSide(side).Valid() {
			return Error(c, fiber.StatusBadRequest, "side must be front or back")
		}
		params.Side = &side
	}

	// Validate limits
	if params.Limit < 1 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	recognitions, total, err := h.db.ListRecognitions(c.Context(), params)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list recognitions")
	}

	return SuccessWithMeta(c, recognitions, total, params.Limit, params.Offset)
}

// GetRecognition returns a single recognition result
func (h *RecognitionHandler) GetRecognition(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recognition ID")
	}

	recognition, err := h.db.GetRecognitionByID(c.Context(), id)
	if err != nil {
		if err == database.ErrRecognitionNotFound {
			return Error(c, fiber.StatusNotFound, "recognition not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get recognition")
	}

	// Check ownership
	if recognition.UserID != userID {
		return Error(c, fiber.StatusForbidden, "access denied")
	}

	// Generate presigned URL for the archived image
	if h.storage != nil && recognition.S3Key != nil {
		imageURL, _ := h.storage.GetPresignedURL(c.Context(), *recognition.S3Key, 1*time.Hour)
		recognition.ImageURL = &imageURL
	}

	return Success(c, recognition)
}

// GetRecognitionImage returns a presigned URL for the archived capture
func (h *RecognitionHandler) GetRecognitionImage(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recognition ID")
	}

	recognition, err := h.db.GetRecognitionByID(c.Context(), id)
	if err != nil {
		if err == database.ErrRecognitionNotFound {
			return Error(c, fiber.StatusNotFound, "recognition not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get recognition")
	}

	if recognition.UserID != userID {
		return Error(c, fiber.StatusForbidden, "access denied")
	}

	if h.storage == nil || recognition.S3Key == nil {
		return Error(c, fiber.StatusNotFound, "no archived image for this recognition")
	}

	// Generate presigned URL (valid for 1 hour)
	url, err := h.storage.GetPresignedURL(c.Context(), *recognition.S3Key, 1*time.Hour)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to generate image URL")
	}

	return Success(c, fiber.Map{"url": url})
}

// DeleteRecognition removes a recognition result and its archived image
func (h *RecognitionHandler) DeleteRecognition(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recognition ID")
	}

	recognition, err := h.db.GetRecognitionByID(c.Context(), id)
	if err != nil {
		if err == database.ErrRecognitionNotFound {
			return Error(c, fiber.StatusNotFound, "recognition not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get recognition")
	}

	// Check ownership
	if recognition.UserID != userID && middleware.GetUserRole(c) != models.RoleAdmin {
		return Error(c, fiber.StatusForbidden, "access denied")
	}

	if err := h.db.DeleteRecognition(c.Context(), id); err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to delete recognition")
	}

	// Clean up the archived image
	if h.storage != nil && recognition.S3Key != nil {
		if err := h.storage.Delete(c.Context(), *recognition.S3Key); err != nil {
			log.Printf("Warning: Failed to delete archived image %s: %v", *recognition.S3Key, err)
		}
	}

	return Success(c, fiber.Map{"deleted": true})
}
