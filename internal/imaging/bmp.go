package imaging

import "encoding/binary"

const (
	bmpHeaderSize = 14
	dibHeaderSize = 40
	bmpDataOffset = bmpHeaderSize + dibHeaderSize

	// 2835 pixels/meter, roughly 72 DPI.
	bmpResolution = 2835
)

// EncodeBMP serializes a pixel buffer into a 24-bit, uncompressed, bottom-up
// BMP container. Rows are stored bottom-to-top in B,G,R order (alpha
// dropped) and zero-padded to a multiple of 4 bytes. A source index that
// would read past the end of the pixel slice is emitted as black instead of
// failing, which tolerates buffers shorter than Width*Height*4 left behind
// by an upstream decode inconsistency.
func EncodeBMP(src *PixelBuffer) []byte {
	rowSize := (src.Width*3 + 3) &^ 3
	imageSize := rowSize * src.Height
	fileSize := bmpDataOffset + imageSize

	out := make([]byte, fileSize)

	// File header
	out[0] = 'B'
	out[1] = 'M'
	binary.LittleEndian.PutUint32(out[2:6], uint32(fileSize)) //nolint:gosec // sizes are bounded by pixel dimensions
	binary.LittleEndian.PutUint32(out[10:14], bmpDataOffset)

	// DIB header (BITMAPINFOHEADER)
	binary.LittleEndian.PutUint32(out[14:18], dibHeaderSize)
	binary.LittleEndian.PutUint32(out[18:22], uint32(src.Width))  //nolint:gosec // positive by construction
	binary.LittleEndian.PutUint32(out[22:26], uint32(src.Height)) //nolint:gosec // positive height = bottom-up rows
	binary.LittleEndian.PutUint16(out[26:28], 1)                  // planes
	binary.LittleEndian.PutUint16(out[28:30], 24)                 // bits per pixel
	binary.LittleEndian.PutUint32(out[30:34], 0)                  // BI_RGB, no compression
	binary.LittleEndian.PutUint32(out[34:38], uint32(imageSize))  //nolint:gosec // sizes are bounded by pixel dimensions
	binary.LittleEndian.PutUint32(out[38:42], bmpResolution)
	binary.LittleEndian.PutUint32(out[42:46], bmpResolution)

	for y := range src.Height {
		// Bottom-up: the first stored row is the bottom image row.
		srcRow := src.Height - 1 - y
		rowStart := bmpDataOffset + y*rowSize
		for x := range src.Width {
			si := (srcRow*src.Width + x) * 4
			di := rowStart + x*3
			if si+2 < len(src.Pix) {
				out[di] = src.Pix[si+2]   // B
				out[di+1] = src.Pix[si+1] // G
				out[di+2] = src.Pix[si]   // R
			}
		}
	}

	return out
}
