// Package imaging implements the pixel pipeline for media normalization:
// container format sniffing, PNG/JPEG decoding to raw RGBA, alpha
// compositing, nearest-neighbor resampling, and BMP encoding.
package imaging

import "bytes"

// Format is an image container format classified from binary content.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
	FormatBMP
	FormatWebP
)

// String returns the lowercase container name.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatBMP:
		return "bmp"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// Container signatures. Classification never consults a filename suffix:
// remote URLs routinely lie about content type via query parameters.
var (
	magicBMP  = []byte{0x42, 0x4D}
	magicPNG  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicRIFF = []byte{0x52, 0x49, 0x46, 0x46}
	magicWEBP = []byte{0x57, 0x45, 0x42, 0x50} // at offset 8
)

// Classify determines the container format from at most the first 16 bytes
// of data. It is total over any byte sequence: buffers shorter than a
// signature simply fail that signature test.
func Classify(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, magicPNG):
		return FormatPNG
	case bytes.HasPrefix(data, magicJPEG):
		return FormatJPEG
	case len(data) >= 12 && bytes.HasPrefix(data, magicRIFF) && bytes.Equal(data[8:12], magicWEBP):
		return FormatWebP
	case bytes.HasPrefix(data, magicBMP):
		return FormatBMP
	default:
		return FormatUnknown
	}
}
