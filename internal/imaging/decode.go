package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/pocketllm/mediabox/internal/types"
)

// PixelBuffer is a raw interleaved RGBA image: non-premultiplied, row-major,
// top-down regardless of source encoding. Invariant: len(Pix) == Width*Height*4.
type PixelBuffer struct {
	Pix    []byte
	Width  int
	Height int
}

// WhitePlaceholder returns the 1x1 opaque white fallback buffer. The
// pipeline returns it when every decode tier fails, so a chat turn always
// terminates with some valid image.
func WhitePlaceholder() *PixelBuffer {
	return &PixelBuffer{
		Pix:    []byte{255, 255, 255, 255},
		Width:  1,
		Height: 1,
	}
}

// DecodePNG decodes PNG data into a PixelBuffer. For animated PNGs only the
// default frame is delivered.
func DecodePNG(data []byte) (*PixelBuffer, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewDecodeError("png", err)
	}
	return toPixelBuffer(img, "png")
}

// DecodeJPEG decodes JPEG data into a PixelBuffer, converting whatever
// internal color model the source used (YCbCr, grayscale, CMYK) to RGBA.
func DecodeJPEG(data []byte) (*PixelBuffer, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewDecodeError("jpeg", err)
	}
	return toPixelBuffer(img, "jpeg")
}

// toPixelBuffer renders a decoded image into the canonical RGBA layout.
// NRGBA keeps channel values straight (non-premultiplied), so compositing
// math downstream sees the source channels as encoded.
func toPixelBuffer(img image.Image, format string) (*PixelBuffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, types.NewDecodeError(format, fmt.Errorf("invalid dimensions %dx%d", w, h))
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	if len(dst.Pix) != w*h*4 {
		return nil, types.NewDecodeError(format, fmt.Errorf("pixel buffer length %d does not match %dx%d", len(dst.Pix), w, h))
	}

	return &PixelBuffer{Pix: dst.Pix, Width: w, Height: h}, nil
}
