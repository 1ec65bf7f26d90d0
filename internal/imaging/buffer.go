package imaging

import (
	"bytes"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// MaxSourceBytes is the largest accepted source image (10 MiB)
const MaxSourceBytes = 10 * 1024 * 1024

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrSourceTooLarge    = errors.New("image exceeds maximum size")
	ErrInvalidImage      = errors.New("invalid image data")
	ErrSourceNotReady    = errors.New("image dimensions not decoded")
	ErrRenderFailed      = errors.New("failed to render image")
	ErrEmptySelection    = errors.New("crop selection is empty")
)

// Canonical MIME types accepted by the wizard
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEWEBP = "image/webp"
)

// Buffer is an encoded still image. The byte payload is never mutated after
// construction; every transform allocates a new Buffer. Containers compare
// Buffers by pointer identity, which is only sound because of that discipline.
type Buffer struct {
	data     []byte
	mimeType string
	width    int
	height   int
}

// Decode validates and wraps an encoded image. The size cap is enforced before
// any decode attempt; only the header is decoded to learn the dimensions.
func Decode(data []byte, contentType string) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	if len(data) > MaxSourceBytes {
		return nil, ErrSourceTooLarge
	}
	if contentType != "" && !IsSupportedType(contentType) {
		return nil, ErrUnsupportedFormat
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage
	}

	mime, ok := formatMIME[format]
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	return &Buffer{
		data:     data,
		mimeType: mime,
		width:    cfg.Width,
		height:   cfg.Height,
	}, nil
}

// newBuffer wraps transform output whose dimensions are already known.
func newBuffer(data []byte, mimeType string, width, height int) *Buffer {
	return &Buffer{data: data, mimeType: mimeType, width: width, height: height}
}

// Bytes returns the encoded payload. Callers must not modify it.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// MIME returns the canonical content type of the payload
func (b *Buffer) MIME() string {
	return b.mimeType
}

// Width returns the pixel width, or 0 if unknown
func (b *Buffer) Width() int {
	return b.width
}

// Height returns the pixel height, or 0 if unknown
func (b *Buffer) Height() int {
	return b.height
}

// Size returns the encoded payload length in bytes
func (b *Buffer) Size() int {
	return len(b.data)
}

// Decoded reports whether the image dimensions are known
func (b *Buffer) Decoded() bool {
	return b != nil && b.width > 0 && b.height > 0
}

var formatMIME = map[string]string{
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
	"webp": MIMEWEBP,
}

// IsSupportedType checks if the content type is an accepted image type
func IsSupportedType(contentType string) bool {
	validTypes := []string{
		"image/jpeg",
		"image/jpg",
		"image/png",
		"image/webp",
	}

	for _, t := range validTypes {
		if strings.EqualFold(contentType, t) {
			return true
		}
	}
	return false
}
