package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// jpegQuality is the fixed re-encode quality for all transform output
const jpegQuality = 90

// Rect is a crop selection in the coordinate space the caller saw on screen
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rotate renders the image rotated clockwise by the given number of degrees
// and re-encodes it as JPEG. Multiples of 90 are exact pixel remaps (the
// output dimensions swap for 90 and 270); any other angle is rendered about
// the image center onto a canvas of the natural dimensions, clipping the
// corners. Rotating by 0 is a content-preserving re-encode, not an error.
func Rotate(buf *Buffer, degrees int) (*Buffer, error) {
	if !buf.Decoded() {
		return nil, ErrSourceNotReady
	}

	src, err := decodePixels(buf)
	if err != nil {
		return nil, err
	}

	deg := ((degrees % 360) + 360) % 360

	var out *image.RGBA
	switch deg {
	case 0:
		out = toRGBA(src)
	case 90, 180, 270:
		out = rotateQuarter(toRGBA(src), deg)
	default:
		out = rotateArbitrary(src, deg)
	}

	return encodeJPEG(out)
}

// Crop extracts the selection from the image. The rect is expressed in the
// displayed coordinate space; it is mapped into natural pixel space using the
// naturalWidth/displayedWidth and naturalHeight/displayedHeight scale factors,
// with dimensions floored. Output is re-encoded as JPEG.
func Crop(buf *Buffer, rect Rect, displayedWidth, displayedHeight int) (*Buffer, error) {
	if !buf.Decoded() {
		return nil, ErrSourceNotReady
	}
	if displayedWidth <= 0 || displayedHeight <= 0 {
		return nil, ErrEmptySelection
	}

	scaleX := float64(buf.width) / float64(displayedWidth)
	scaleY := float64(buf.height) / float64(displayedHeight)

	x := int(math.Floor(float64(rect.X) * scaleX))
	y := int(math.Floor(float64(rect.Y) * scaleY))
	w := int(math.Floor(float64(rect.Width) * scaleX))
	h := int(math.Floor(float64(rect.Height) * scaleY))

	if w <= 0 || h <= 0 {
		return nil, ErrEmptySelection
	}

	// Clamp the selection to the image bounds
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > buf.width {
		w = buf.width - x
	}
	if y+h > buf.height {
		h = buf.height - y
	}
	if w <= 0 || h <= 0 {
		return nil, ErrEmptySelection
	}

	src, err := decodePixels(buf)
	if err != nil {
		return nil, err
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	region := image.Rect(x, y, x+w, y+h).Add(src.Bounds().Min)
	draw.Draw(out, out.Bounds(), src, region.Min, draw.Src)

	return encodeJPEG(out)
}

// Enhance applies a document-oriented cleanup (grayscale plus linear contrast
// stretch) and re-encodes as JPEG. Used as the local fallback when no remote
// enhancement endpoint is configured.
func Enhance(buf *Buffer) (*Buffer, error) {
	if !buf.Decoded() {
		return nil, ErrSourceNotReady
	}

	src, err := decodePixels(buf)
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	// Stretch the luma range to the full 0-255 span
	lo, hi := uint8(255), uint8(0)
	for _, v := range gray.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi > lo {
		span := float64(hi - lo)
		for i, v := range gray.Pix {
			gray.Pix[i] = uint8(math.Round(float64(v-lo) / span * 255))
		}
	}

	return encodeJPEG(gray)
}

// decodePixels fully decodes the payload for rendering
func decodePixels(buf *Buffer) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(buf.data))
	if err != nil {
		return nil, ErrRenderFailed
	}
	return img, nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

// rotateQuarter remaps pixels exactly for 90, 180 and 270 degree rotations
func rotateQuarter(src *image.RGBA, deg int) *image.RGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()

	var out *image.RGBA
	if deg == 180 {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	}

	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			c := src.RGBAAt(sb.Min.X+sx, sb.Min.Y+sy)
			switch deg {
			case 90:
				out.SetRGBA(h-1-sy, sx, c)
			case 180:
				out.SetRGBA(w-1-sx, h-1-sy, c)
			case 270:
				out.SetRGBA(sy, w-1-sx, c)
			}
		}
	}
	return out
}

// rotateArbitrary renders about the center onto a canvas of the source's
// natural dimensions, filling uncovered corners with white
func rotateArbitrary(src image.Image, deg int) *image.RGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	theta := float64(deg) * math.Pi / 180
	sin, cos := math.Sin(theta), math.Cos(theta)
	cx, cy := float64(w)/2, float64(h)/2

	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	xdraw.BiLinear.Transform(out, m, src, sb, xdraw.Over, nil)
	return out
}

func encodeJPEG(img image.Image) (*Buffer, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, ErrRenderFailed
	}
	b := img.Bounds()
	return newBuffer(buf.Bytes(), MIMEJPEG, b.Dx(), b.Dy()), nil
}
