package imaging

// CompositeOnWhite flattens a buffer onto an opaque white background and
// forces every alpha to 255. Each output channel is
// round(src*alpha/255 + 255*(1-alpha/255)). Numerically a no-op for fully
// opaque pixels, so callers apply it unconditionally after PNG decode
// instead of branching on transparency.
func CompositeOnWhite(src *PixelBuffer) *PixelBuffer {
	out := &PixelBuffer{
		Pix:    make([]byte, len(src.Pix)),
		Width:  src.Width,
		Height: src.Height,
	}

	for i := 0; i+3 < len(src.Pix); i += 4 {
		a := uint32(src.Pix[i+3])
		for c := range 3 {
			v := uint32(src.Pix[i+c])*a + 255*(255-a)
			out.Pix[i+c] = byte((v + 127) / 255)
		}
		out.Pix[i+3] = 255
	}

	return out
}
