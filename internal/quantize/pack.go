package quantize

import (
	"errors"
	"fmt"
	"image"
)

var ErrPackedLength = errors.New("packed data length does not match dimensions")

// PackedLen is the payload size for a w x h raster: every row starts on a
// fresh byte, so odd widths carry one padding nibble per row.
func PackedLen(w, h int) int {
	return (w + 1) / 2 * h
}

// Pack lays gray out the way the panel reads it: two pixels per byte, the
// even-x pixel in the high nibble, rows left to right, top to bottom.
// There is no header; width and height travel out of band.
func Pack(gray *image.Gray) []byte {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, PackedLen(w, h))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		var current byte
		for x := 0; x < w; x++ {
			p := gray.Pix[gray.PixOffset(b.Min.X+x, y)]
			if x&1 == 0 {
				current = p & 0xF0
				continue
			}
			current |= p >> 4
			out = append(out, current)
		}
		if w&1 == 1 {
			out = append(out, current)
		}
	}
	return out
}

// Unpack expands a packed payload back into a raster. Each pixel keeps the
// top four bits it was packed with.
func Unpack(data []byte, w, h int) (*image.Gray, error) {
	if w < 0 || h < 0 || len(data) != PackedLen(w, h) {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrPackedLength, len(data), w, h)
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	stride := (w + 1) / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := data[y*stride+x/2]
			if x&1 == 0 {
				v &= 0xF0
			} else {
				v <<= 4
			}
			gray.Pix[gray.PixOffset(x, y)] = v
		}
	}
	return gray, nil
}
