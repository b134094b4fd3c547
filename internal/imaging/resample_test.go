package imaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name                 string
		w, h, maxSize        int
		wantW, wantH         int
	}{
		{"landscape clamped", 100, 50, 50, 50, 25},
		{"portrait clamped", 50, 100, 50, 25, 50},
		{"already fits", 300, 200, 1024, 300, 200},
		{"exactly at bound", 1024, 512, 1024, 1024, 512},
		{"extreme ratio clamps to one", 1000, 1, 50, 50, 1},
		{"zero max is no-op", 4000, 3000, 0, 4000, 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitWithin(tt.w, tt.h, tt.maxSize)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestResampleDownscalePicksNearestSource(t *testing.T) {
	// 4x1 source with distinct pixels; downscale to 2x1 picks columns 0 and 2.
	src := &PixelBuffer{
		Pix: []byte{
			1, 1, 1, 255,
			2, 2, 2, 255,
			3, 3, 3, 255,
			4, 4, 4, 255,
		},
		Width:  4,
		Height: 1,
	}

	out := Resample(src, 2, 1)
	assert.Equal(t, 2, out.Width)
	assert.Equal(t, 1, out.Height)
	assert.Equal(t, []byte{1, 1, 1, 255, 3, 3, 3, 255}, out.Pix)
}

func TestResampleUpscaleRepeatsPixels(t *testing.T) {
	src := &PixelBuffer{
		Pix:    []byte{9, 9, 9, 255, 7, 7, 7, 255},
		Width:  2,
		Height: 1,
	}

	out := Resample(src, 4, 1)
	// sx = x*2/4: destinations 0,1 read source 0; destinations 2,3 read source 1.
	assert.Equal(t, []byte{
		9, 9, 9, 255,
		9, 9, 9, 255,
		7, 7, 7, 255,
		7, 7, 7, 255,
	}, out.Pix)
}

func TestResampleOutputLength(t *testing.T) {
	src := &PixelBuffer{Pix: make([]byte, 100*50*4), Width: 100, Height: 50}

	out := Resample(src, 50, 25)
	assert.Len(t, out.Pix, 50*25*4)
}

func TestResampleRows(t *testing.T) {
	// 1x4 column downscaled to 1x2 picks rows 0 and 2.
	src := &PixelBuffer{
		Pix: []byte{
			1, 0, 0, 255,
			2, 0, 0, 255,
			3, 0, 0, 255,
			4, 0, 0, 255,
		},
		Width:  1,
		Height: 4,
	}

	out := Resample(src, 1, 2)
	assert.Equal(t, byte(1), out.Pix[0])
	assert.Equal(t, byte(3), out.Pix[4])
}
