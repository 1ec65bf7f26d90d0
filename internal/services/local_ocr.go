package services

import (
	"context"
	"fmt"

	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
	"github.com/MiguelCortes1231/ocrFront/internal/models"
)

// LocalOCRClient implements OCRClient with a local Tesseract engine and the
// credential field parser. It exists so the wizard works without the external
// recognition API, at reduced accuracy.
type LocalOCRClient struct {
	engine *TesseractEngine
	parser *CredentialParser
}

// NewLocalOCRClient creates an OCR client backed by local Tesseract
func NewLocalOCRClient(engine *TesseractEngine) *LocalOCRClient {
	return &LocalOCRClient{
		engine: engine,
		parser: NewCredentialParser(),
	}
}

// ProcessFront extracts and parses the front-side credential fields
func (c *LocalOCRClient) ProcessFront(ctx context.Context, image *imaging.Buffer) (*models.FrontFields, error) {
	var fields *models.FrontFields
	err := runWithBudget(ctx, func() error {
		result, err := c.engine.ProcessImage(image.Bytes())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOCRFailed, err)
		}
		fields = c.parser.ParseFront(result.Text)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// ProcessBack extracts and parses the back-side credential fields
func (c *LocalOCRClient) ProcessBack(ctx context.Context, image *imaging.Buffer) (*models.BackFields, error) {
	var fields *models.BackFields
	err := runWithBudget(ctx, func() error {
		result, err := c.engine.ProcessImage(image.Bytes())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOCRFailed, err)
		}
		fields = c.parser.ParseBack(result.Text)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

// Enhance applies the local document cleanup in place of the remote
// enhancement endpoint
func (c *LocalOCRClient) Enhance(ctx context.Context, image *imaging.Buffer) (*imaging.Buffer, error) {
	var enhanced *imaging.Buffer
	err := runWithBudget(ctx, func() error {
		out, err := imaging.Enhance(image)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOCRFailed, err)
		}
		enhanced = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return enhanced, nil
}
