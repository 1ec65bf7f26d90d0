//go:build !windows && cgo

package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine extracts text from credential images with a local
// Tesseract installation
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// OCRResult contains the raw text extracted from an image
type OCRResult struct {
	Text string
}

// NewTesseractEngine creates a local OCR engine. The language should match
// the credential being scanned (spa for the supported credentials).
func NewTesseractEngine(language string) (*TesseractEngine, error) {
	client := gosseract.NewClient()

	if language == "" {
		language = "spa"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Credentials carry several independent text blocks, so let Tesseract
	// segment the page automatically
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &TesseractEngine{
		client: client,
	}, nil
}

// ProcessImage extracts text from an encoded image. The underlying client is
// not safe for concurrent use, so calls are serialized.
func (e *TesseractEngine) ProcessImage(imageBytes []byte) (*OCRResult, error) {
	// gosseract reads from disk, so stage the image in a temp file
	tmpFile, err := os.CreateTemp("", "credential-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	if _, err := tmpFile.Write(imageBytes); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	// Close to flush writes
	tmpFile.Close()

	return e.processFromPath(tmpFile.Name())
}

func (e *TesseractEngine) processFromPath(imagePath string) (*OCRResult, error) {
	absPath, err := filepath.Abs(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImage(absPath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	return &OCRResult{Text: text}, nil
}

// Close releases OCR resources
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
