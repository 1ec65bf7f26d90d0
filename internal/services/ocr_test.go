package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MiguelCortes1231/ocrFront/internal/imaging"
	"github.com/MiguelCortes1231/ocrFront/internal/models"
)

func testImage(t *testing.T) *imaging.Buffer {
	t.Helper()

	var enc bytes.Buffer
	if err := png.Encode(&enc, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	buf, err := imaging.Decode(enc.Bytes(), "image/png")
	if err != nil {
		t.Fatalf("failed to decode test image: %v", err)
	}
	return buf
}

func TestRemoteOCRClientProcessFront(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("missing image form file: %v", err)
		}
		json.NewEncoder(w).Encode(models.FrontFields{
			FullName:        "GOMEZ VELAZQUEZ MARGARITA",
			CURP:            "GOVM800605MDFMLR09",
			ValidCredential: true,
		})
	}))
	defer srv.Close()

	client := NewRemoteOCRClient(srv.URL, "secret-key")

	fields, err := client.ProcessFront(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("ProcessFront() error = %v", err)
	}
	if gotPath != "/front" {
		t.Errorf("request path = %q, want %q", gotPath, "/front")
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if fields.CURP != "GOVM800605MDFMLR09" || !fields.ValidCredential {
		t.Errorf("fields = %+v, want decoded response", fields)
	}
}

func TestRemoteOCRClientProcessBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/back" {
			t.Errorf("request path = %q, want %q", r.URL.Path, "/back")
		}
		json.NewEncoder(w).Encode(models.BackFields{
			PaternalSurname: "GOMEZ",
			GivenNames:      "MARGARITA",
		})
	}))
	defer srv.Close()

	client := NewRemoteOCRClient(srv.URL, "")

	fields, err := client.ProcessBack(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("ProcessBack() error = %v", err)
	}
	if fields.PaternalSurname != "GOMEZ" {
		t.Errorf("PaternalSurname = %q, want %q", fields.PaternalSurname, "GOMEZ")
	}
}

func TestRemoteOCRClientEnhance(t *testing.T) {
	src := testImage(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(src.Bytes())
	}))
	defer srv.Close()

	client := NewRemoteOCRClient(srv.URL, "")

	enhanced, err := client.Enhance(context.Background(), src)
	if err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}
	if enhanced.Width() != 4 || enhanced.Height() != 4 {
		t.Errorf("enhanced dimensions = %dx%d, want 4x4", enhanced.Width(), enhanced.Height())
	}
}

func TestRemoteOCRClientStatusMapping(t *testing.T) {
	tests := []struct {
		status  int
		wantErr error
	}{
		{http.StatusUnauthorized, ErrOCRUnauthorized},
		{http.StatusForbidden, ErrOCRUnauthorized},
		{http.StatusRequestTimeout, ErrOCRTimeout},
		{http.StatusGatewayTimeout, ErrOCRTimeout},
		{http.StatusInternalServerError, ErrOCRFailed},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		client := NewRemoteOCRClient(srv.URL, "")
		_, err := client.ProcessFront(context.Background(), testImage(t))
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("status %d: error = %v, want %v", tt.status, err, tt.wantErr)
		}
		srv.Close()
	}
}

func TestRemoteOCRClientDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewRemoteOCRClient(srv.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.ProcessFront(ctx, testImage(t)); !errors.Is(err, ErrOCRTimeout) {
		t.Errorf("ProcessFront() error = %v, want %v", err, ErrOCRTimeout)
	}
}

func TestRunWithBudget(t *testing.T) {
	if err := runWithBudget(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("runWithBudget() error = %v, want nil", err)
	}

	sentinel := errors.New("engine failure")
	if err := runWithBudget(context.Background(), func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("runWithBudget() error = %v, want %v", err, sentinel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	block := make(chan struct{})
	defer close(block)
	err := runWithBudget(ctx, func() error { <-block; return nil })
	if !errors.Is(err, ErrOCRTimeout) {
		t.Errorf("runWithBudget() error = %v, want %v", err, ErrOCRTimeout)
	}
}
