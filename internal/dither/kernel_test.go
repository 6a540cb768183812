package dither

import (
	"errors"
	"testing"
)

func TestKernelNormalization(t *testing.T) {
	tests := []struct {
		kernel Kernel
		norm   uint32
		sum    uint32
	}{
		{None, 1, 1},
		{FloydSteinberg, 16, 16},
		{Atkinson, 8, 6},
		{JarvisJudiceNinke, 48, 48},
	}
	for _, tt := range tests {
		t.Run(tt.kernel.Name(), func(t *testing.T) {
			if got := tt.kernel.Normalization(); got != tt.norm {
				t.Fatalf("normalization = %d, want %d", got, tt.norm)
			}
			if got := tt.kernel.sum(); got != tt.sum {
				t.Fatalf("weight sum = %d, want %d", got, tt.sum)
			}
			if err := tt.kernel.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
		})
	}
}

func TestKernelWeights(t *testing.T) {
	tests := []struct {
		kernel Kernel
		dx, dy int
		want   uint32
	}{
		{FloydSteinberg, 1, 0, 7},
		{FloydSteinberg, -1, 1, 3},
		{FloydSteinberg, 0, 1, 5},
		{FloydSteinberg, 1, 1, 1},
		{FloydSteinberg, 0, 0, 0},
		{JarvisJudiceNinke, 2, 0, 5},
		{JarvisJudiceNinke, -2, 2, 1},
		{Atkinson, 0, 2, 1},
		{None, 0, 0, 1},
		{FloydSteinberg, 3, 0, 0},
		{FloydSteinberg, 0, -3, 0},
	}
	for _, tt := range tests {
		if got := tt.kernel.Weight(tt.dx, tt.dy); got != tt.want {
			t.Fatalf("%s.Weight(%d, %d) = %d, want %d", tt.kernel, tt.dx, tt.dy, got, tt.want)
		}
	}
}

func TestOffsetsFollowRasterOrder(t *testing.T) {
	offsets := FloydSteinberg.Offsets()
	want := []Offset{
		{DX: 1, DY: 0, Weight: 7},
		{DX: -1, DY: 1, Weight: 3},
		{DX: 0, DY: 1, Weight: 5},
		{DX: 1, DY: 1, Weight: 1},
	}
	if len(offsets) != len(want) {
		t.Fatalf("got %d offsets, want %d", len(offsets), len(want))
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offset %d = %+v, want %+v", i, offsets[i], want[i])
		}
	}
}

func TestValidateRejectsBackwardWeights(t *testing.T) {
	k := newKernel("backward", 2, Matrix{
		{0, 0, 0, 0, 0},
		{0, 0, 1, 0, 0},
		{0, 0, 0, 1, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})
	if err := k.Validate(); err == nil {
		t.Fatal("expected error for weight above the centre row")
	}

	left := newKernel("left", 2, Matrix{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 1, 0, 1, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})
	if err := left.Validate(); err == nil {
		t.Fatal("expected error for weight left of the centre")
	}

	if err := newKernel("empty", 0, Matrix{}).Validate(); err == nil {
		t.Fatal("expected error for zero normalization")
	}

	heavy := newKernel("heavy", 1, Matrix{
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 1, 1},
		{0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0},
	})
	if err := heavy.Validate(); err == nil {
		t.Fatal("expected error for weights above normalization")
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		k, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if k.Name() != name {
			t.Fatalf("ByName(%q) returned %q", name, k.Name())
		}
	}

	if _, err := ByName("ordered"); !errors.Is(err, ErrUnknownKernel) {
		t.Fatalf("ByName(ordered) error = %v, want ErrUnknownKernel", err)
	}
}

func TestNamesSorted(t *testing.T) {
	want := []string{"atkinson", "floyd-steinberg", "jarvis-judice-ninke", "none"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}
