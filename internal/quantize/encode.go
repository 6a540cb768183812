package quantize

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/radeeyate/comicplate/internal/dither"
)

// Format selects one of the three output encodings.
type Format int

const (
	FormatColor Format = iota
	FormatGrayscale
	FormatPacked
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "color", "colour":
		return FormatColor, nil
	case "grayscale", "gray":
		return FormatGrayscale, nil
	case "packed", "inkplate", "raw":
		return FormatPacked, nil
	default:
		return 0, fmt.Errorf("unknown output format %q", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatColor:
		return "color"
	case FormatGrayscale:
		return "grayscale"
	case FormatPacked:
		return "packed"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func (f Format) ContentType() string {
	if f == FormatPacked {
		return "application/octet-stream"
	}
	return "image/png"
}

// EncodeColor writes img as PNG without any quantization.
func EncodeColor(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}

// EncodeGrayscale writes the dithered single-channel raster as PNG.
func EncodeGrayscale(w io.Writer, img image.Image, kernel dither.Kernel) error {
	return imaging.Encode(w, Quantize(img, kernel), imaging.PNG)
}

func EncodePacked(img image.Image, kernel dither.Kernel) []byte {
	return Pack(Quantize(img, kernel))
}

// Encoder renders a canvas in any Format with its configured kernels.
type Encoder struct {
	GrayscaleKernel dither.Kernel
	PackedKernel    dither.Kernel
}

func NewEncoder(grayscale, packed dither.Kernel) *Encoder {
	return &Encoder{GrayscaleKernel: grayscale, PackedKernel: packed}
}

// DefaultEncoder dithers PNG previews with Floyd-Steinberg and panel payloads
// with Jarvis-Judice-Ninke.
func DefaultEncoder() *Encoder {
	return NewEncoder(dither.FloydSteinberg, dither.JarvisJudiceNinke)
}

func (e *Encoder) Encode(img image.Image, f Format) ([]byte, error) {
	switch f {
	case FormatColor:
		var buf bytes.Buffer
		if err := EncodeColor(&buf, img); err != nil {
			return nil, fmt.Errorf("encode color png: %w", err)
		}
		return buf.Bytes(), nil
	case FormatGrayscale:
		var buf bytes.Buffer
		if err := EncodeGrayscale(&buf, img, e.GrayscaleKernel); err != nil {
			return nil, fmt.Errorf("encode grayscale png: %w", err)
		}
		return buf.Bytes(), nil
	case FormatPacked:
		return EncodePacked(img, e.PackedKernel), nil
	default:
		return nil, fmt.Errorf("unknown output format %v", f)
	}
}
