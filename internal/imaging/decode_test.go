package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketllm/mediabox/internal/types"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func uniformImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func TestDecodePNG(t *testing.T) {
	data := encodePNG(t, uniformImage(3, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 255}))

	buf, err := DecodePNG(data)
	require.NoError(t, err)
	assert.Equal(t, 3, buf.Width)
	assert.Equal(t, 2, buf.Height)
	assert.Len(t, buf.Pix, 3*2*4)
	assert.Equal(t, []byte{200, 100, 50, 255}, buf.Pix[:4])
}

func TestDecodePNGKeepsAlpha(t *testing.T) {
	data := encodePNG(t, uniformImage(2, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 128}))

	buf, err := DecodePNG(data)
	require.NoError(t, err)
	assert.Equal(t, byte(128), buf.Pix[3], "alpha must survive decode non-premultiplied")
	assert.Equal(t, byte(10), buf.Pix[0])
}

func TestDecodeJPEG(t *testing.T) {
	data := encodeJPEG(t, uniformImage(4, 3, color.NRGBA{R: 255, G: 0, B: 0, A: 255}))

	buf, err := DecodeJPEG(data)
	require.NoError(t, err)
	assert.Equal(t, 4, buf.Width)
	assert.Equal(t, 3, buf.Height)
	assert.Len(t, buf.Pix, 4*3*4)
	// JPEG is lossy; the flat red must come back approximately red and opaque.
	assert.Greater(t, buf.Pix[0], byte(200))
	assert.Equal(t, byte(255), buf.Pix[3])
}

func TestDecodeJPEGGrayscale(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range gray.Pix {
		gray.Pix[i] = 99
	}

	buf, err := DecodeJPEG(encodeJPEG(t, gray))
	require.NoError(t, err)
	assert.Len(t, buf.Pix, 2*2*4)
	assert.InDelta(t, 99, buf.Pix[0], 3)
	assert.Equal(t, buf.Pix[0], buf.Pix[1])
	assert.Equal(t, buf.Pix[1], buf.Pix[2])
}

func TestDecodeInvalidData(t *testing.T) {
	var decodeErr *types.DecodeError

	_, err := DecodePNG([]byte("not a png at all"))
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "png", decodeErr.Format)

	_, err = DecodeJPEG([]byte("not a jpeg either"))
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "jpeg", decodeErr.Format)
}

func TestDecodeMismatchedFormat(t *testing.T) {
	pngData := encodePNG(t, uniformImage(2, 2, color.NRGBA{A: 255}))

	_, err := DecodeJPEG(pngData)
	var decodeErr *types.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestWhitePlaceholder(t *testing.T) {
	buf := WhitePlaceholder()
	assert.Equal(t, 1, buf.Width)
	assert.Equal(t, 1, buf.Height)
	assert.Equal(t, []byte{255, 255, 255, 255}, buf.Pix)
}
