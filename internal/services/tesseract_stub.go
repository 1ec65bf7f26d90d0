//go:build windows || !cgo

package services

import (
	"errors"
	"sync"
)

// TesseractEngine is a stub on Windows; run the server in a container with
// Tesseract installed instead
type TesseractEngine struct {
	mu sync.Mutex
}

// OCRResult contains the raw text extracted from an image
type OCRResult struct {
	Text string
}

// NewTesseractEngine is not available on Windows
func NewTesseractEngine(language string) (*TesseractEngine, error) {
	return nil, errors.New("local OCR is not available on Windows - run in Docker container")
}

// ProcessImage extracts text from an encoded image
func (e *TesseractEngine) ProcessImage(imageBytes []byte) (*OCRResult, error) {
	return nil, errors.New("local OCR is not available on Windows")
}

// Close releases OCR resources
func (e *TesseractEngine) Close() error {
	return nil
}
