// Package dither holds the error-diffusion kernels used to quantize the
// composed canvas for the e-paper panel.
//
// A kernel is a 5x5 window centred on the pixel being quantized. Weights may
// only point at pixels the raster-order scan has not reached yet: everything
// above the centre row and everything left of the centre on that row is zero.
package dither

import (
	"errors"
	"fmt"
	"sort"
)

const (
	Size   = 5
	Center = Size / 2
)

var ErrUnknownKernel = errors.New("unknown dithering kernel")

type Matrix [Size][Size]uint32

type Kernel struct {
	name          string
	weights       Matrix
	normalization uint32
}

func newKernel(name string, normalization uint32, weights Matrix) Kernel {
	return Kernel{name: name, weights: weights, normalization: normalization}
}

// sum is the total of all weights. It never exceeds the normalization;
// Atkinson deliberately drops a quarter of the error.
func (k Kernel) sum() uint32 {
	var total uint32
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			total += k.weights[row][col]
		}
	}
	return total
}

var (
	None = newKernel("none", 1, Matrix{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})

	FloydSteinberg = newKernel("floyd-steinberg", 16, Matrix{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 7, 0},
		{0, 3, 5, 1, 0},
		{0, 0, 0, 0, 0},
	})

	Atkinson = newKernel("atkinson", 8, Matrix{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 1, 1},
		{0, 1, 1, 1, 0},
		{0, 0, 1, 0, 0},
	})

	JarvisJudiceNinke = newKernel("jarvis-judice-ninke", 48, Matrix{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 7, 5},
		{3, 5, 7, 5, 3},
		{1, 3, 5, 3, 1},
	})
)

var kernels = map[string]Kernel{
	None.name:              None,
	FloydSteinberg.name:    FloydSteinberg,
	Atkinson.name:          Atkinson,
	JarvisJudiceNinke.name: JarvisJudiceNinke,
}

func ByName(name string) (Kernel, error) {
	k, ok := kernels[name]
	if !ok {
		return Kernel{}, fmt.Errorf("%w %q (have %v)", ErrUnknownKernel, name, Names())
	}
	return k, nil
}

func Names() []string {
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (k Kernel) Name() string {
	return k.name
}

func (k Kernel) String() string {
	return k.name
}

func (k Kernel) Weights() Matrix {
	return k.weights
}

func (k Kernel) Normalization() uint32 {
	return k.normalization
}

// Weight returns the weight for the pixel at offset (dx, dy) from the centre.
// Offsets outside the window weigh zero.
func (k Kernel) Weight(dx, dy int) uint32 {
	if dx < -Center || dx > Center || dy < -Center || dy > Center {
		return 0
	}
	return k.weights[dy+Center][dx+Center]
}

// Validate checks that the kernel never diffuses into already visited pixels.
func (k Kernel) Validate() error {
	if k.normalization == 0 {
		return fmt.Errorf("kernel %s: zero normalization", k.name)
	}
	if s := k.sum(); s > k.normalization {
		return fmt.Errorf("kernel %s: weights sum to %d, above normalization %d", k.name, s, k.normalization)
	}
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			behind := row < Center || (row == Center && col < Center)
			if behind && k.weights[row][col] != 0 {
				return fmt.Errorf("kernel %s: weight at (%d,%d) points behind the scan", k.name, row, col)
			}
		}
	}
	return nil
}

// Offset is a non-zero kernel cell relative to the centre pixel.
type Offset struct {
	DX, DY int
	Weight uint32
}

// Offsets lists the non-zero cells in raster order.
func (k Kernel) Offsets() []Offset {
	var out []Offset
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if w := k.weights[row][col]; w != 0 {
				out = append(out, Offset{DX: col - Center, DY: row - Center, Weight: w})
			}
		}
	}
	return out
}
