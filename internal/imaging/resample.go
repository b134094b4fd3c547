package imaging

// FitWithin computes the output dimensions that bound the largest dimension
// to maxSize while preserving aspect ratio. Returns the input unchanged when
// it already fits. Each scaled dimension is floored and clamped to 1.
func FitWithin(width, height, maxSize int) (int, int) {
	largest := max(width, height)
	if maxSize <= 0 || largest <= maxSize {
		return width, height
	}

	scale := float64(maxSize) / float64(largest)
	w := max(int(float64(width)*scale), 1)
	h := max(int(float64(height)*scale), 1)
	return w, h
}

// Resample scales a buffer to dstW x dstH with nearest-neighbor sampling:
// for each destination pixel (x, y) the source pixel at
// (x*srcW/dstW, y*srcH/dstH) is copied verbatim. No interpolation — the
// target use is bounding attachment size, not visual fidelity.
func Resample(src *PixelBuffer, dstW, dstH int) *PixelBuffer {
	out := &PixelBuffer{
		Pix:    make([]byte, dstW*dstH*4),
		Width:  dstW,
		Height: dstH,
	}

	for y := range dstH {
		sy := y * src.Height / dstH
		for x := range dstW {
			sx := x * src.Width / dstW
			si := (sy*src.Width + sx) * 4
			di := (y*dstW + x) * 4
			copy(out.Pix[di:di+4], src.Pix[si:si+4])
		}
	}

	return out
}
