package imaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySignatures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}, FormatPNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, FormatJPEG},
		{"bmp", []byte{0x42, 0x4D, 0x36, 0x00, 0x00, 0x00}, FormatBMP},
		{"webp", []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), FormatWebP},
		{"riff but not webp", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), FormatUnknown},
		{"garbage", []byte("hello world, not an image"), FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.data))
		})
	}
}

func TestClassifyPNGPrefixIgnoresTail(t *testing.T) {
	data := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("definitely not png chunks")...)
	assert.Equal(t, FormatPNG, Classify(data))
}

func TestClassifyShortBuffers(t *testing.T) {
	assert.Equal(t, FormatUnknown, Classify(nil))
	assert.Equal(t, FormatUnknown, Classify([]byte{}))
	assert.Equal(t, FormatUnknown, Classify([]byte{0x42}))
	assert.Equal(t, FormatUnknown, Classify([]byte{0xFF, 0xD8})) // JPEG needs 3 bytes
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "png", FormatPNG.String())
	assert.Equal(t, "jpeg", FormatJPEG.String())
	assert.Equal(t, "bmp", FormatBMP.String())
	assert.Equal(t, "webp", FormatWebP.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
}
