// Package quantize reduces rasters to the 3-bit grayscale the e-paper panel
// can show and serializes the result.
package quantize

import (
	"image"

	"github.com/disintegration/gift"

	"github.com/radeeyate/comicplate/internal/dither"
)

// Mask keeps the three most significant bits of a gray level.
const Mask = 0xE0

// Levels is the number of distinct gray levels after quantization.
const Levels = 8

// Grayscale converts img to 8-bit luma.
func Grayscale(img image.Image) *image.Gray {
	g := gift.New(gift.Grayscale())
	dst := image.NewGray(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

func quantizePixel(p uint8) (quantized, residual uint8) {
	quantized = p & Mask
	return quantized, p - quantized
}

// Diffuse quantizes gray in place, scanning in raster order and pushing each
// pixel's residual onto its unvisited neighbours with the kernel's weights.
func Diffuse(gray *image.Gray, kernel dither.Kernel) {
	b := gray.Bounds()
	offsets := kernel.Offsets()
	norm := kernel.Normalization()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := gray.PixOffset(x, y)
			quantized, residual := quantizePixel(gray.Pix[i])
			gray.Pix[i] = quantized
			if residual == 0 {
				continue
			}

			for _, o := range offsets {
				target := image.Point{X: x + o.DX, Y: y + o.DY}
				if !target.In(b) {
					continue
				}
				j := gray.PixOffset(target.X, target.Y)
				v := uint32(gray.Pix[j]) + uint32(residual)*o.Weight/norm
				if v > 255 {
					v = 255
				}
				gray.Pix[j] = uint8(v)
			}
		}
	}
}

// Quantize returns a new dithered 3-bit grayscale copy of img.
func Quantize(img image.Image, kernel dither.Kernel) *image.Gray {
	gray := Grayscale(img)
	Diffuse(gray, kernel)
	return gray
}
