package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
	"github.com/MiguelCortes1231/ocrFront/internal/models"
)

// OCR call failure kinds, distinguished so callers can react differently:
// a timeout suggests retrying with a clearer image, an authorization failure
// tears the session down.
var (
	ErrOCRTimeout      = errors.New("recognition request timed out")
	ErrOCRUnauthorized = errors.New("recognition request unauthorized")
	ErrOCRFailed       = errors.New("recognition request failed")
)

// OCRClient is the recognition collaborator consumed by the wizard. Every
// call carries a bounded time budget through its context.
type OCRClient interface {
	ProcessFront(ctx context.Context, image *imaging.Buffer) (*models.FrontFields, error)
	ProcessBack(ctx context.Context, image *imaging.Buffer) (*models.BackFields, error)
	Enhance(ctx context.Context, image *imaging.Buffer) (*imaging.Buffer, error)
}

// RemoteOCRClient talks to an external recognition API over HTTP
type RemoteOCRClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteOCRClient creates a client for the external recognition API
func NewRemoteOCRClient(baseURL, apiKey string) *RemoteOCRClient {
	return &RemoteOCRClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{},
	}
}

// ProcessFront submits the image to the front-side recognition endpoint
func (c *RemoteOCRClient) ProcessFront(ctx context.Context, image *imaging.Buffer) (*models.FrontFields, error) {
	body, err := c.post(ctx, "/front", image)
	if err != nil {
		return nil, err
	}

	var fields models.FrontFields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode front fields: %w", ErrOCRFailed)
	}
	return &fields, nil
}

// ProcessBack submits the image to the back-side recognition endpoint
func (c *RemoteOCRClient) ProcessBack(ctx context.Context, image *imaging.Buffer) (*models.BackFields, error) {
	body, err := c.post(ctx, "/back", image)
	if err != nil {
		return nil, err
	}

	var fields models.BackFields
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode back fields: %w", ErrOCRFailed)
	}
	return &fields, nil
}

// Enhance submits the image to the enhancement endpoint and returns the
// improved image
func (c *RemoteOCRClient) Enhance(ctx context.Context, image *imaging.Buffer) (*imaging.Buffer, error) {
	body, err := c.post(ctx, "/enhance", image)
	if err != nil {
		return nil, err
	}

	enhanced, err := imaging.Decode(body, "")
	if err != nil {
		return nil, fmt.Errorf("enhancement returned an unreadable image: %w", ErrOCRFailed)
	}
	return enhanced, nil
}

// post uploads the image as multipart form data and returns the response body
func (c *RemoteOCRClient) post(ctx context.Context, path string, image *imaging.Buffer) ([]byte, error) {
	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("image", "capture.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(image.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &form)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrOCRTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrOCRUnauthorized
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return nil, ErrOCRTimeout
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrOCRFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}
	return body, nil
}

// runWithBudget executes fn in a goroutine and waits for it or the context,
// so CPU-bound local OCR honors the same time budget as the remote API
func runWithBudget(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrOCRTimeout
		}
		return ctx.Err()
	}
}
