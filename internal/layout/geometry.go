package layout

import (
	"fmt"
	"image"
	"math"
)

// Rect is a placement in canvas pixel space.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Right() int  { return r.X + r.W }
func (r Rect) Bottom() int { return r.Y + r.H }

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.Right(), r.Bottom())
}

func (r Rect) Min() image.Point {
	return image.Pt(r.X, r.Y)
}

// Within reports whether r lies inside a w x h canvas.
func (r Rect) Within(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.W >= 0 && r.H >= 0 && r.Right() <= w && r.Bottom() <= h
}

func (r Rect) Overlaps(o Rect) bool {
	return r.Image().Overlaps(o.Image())
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}

// Size is a fractional width and height.
type Size struct {
	W, H float64
}

// FitToBox scales a w x h source to the largest size that fits box while
// keeping its aspect ratio. The binding axis takes the box dimension, the
// other one is floored.
func FitToBox(w, h int, box Size) Size {
	if w <= 0 || h <= 0 || box.W <= 0 || box.H <= 0 {
		return Size{}
	}
	// box.W / aspect > box.H, cross-multiplied to stay exact on integers.
	if box.W*float64(h) > box.H*float64(w) {
		return Size{W: math.Floor(box.H * float64(w) / float64(h)), H: box.H}
	}
	return Size{W: box.W, H: math.Floor(box.W * float64(h) / float64(w))}
}

// Canvas is the fixed drawing area with its margin.
type Canvas struct {
	Width  int
	Height int
	Margin int
}

func (c Canvas) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("canvas %dx%d has no area", c.Width, c.Height)
	}
	if c.Margin < 0 || 2*c.Margin >= c.Width || 2*c.Margin >= c.Height {
		return fmt.Errorf("margin %d leaves no room on a %dx%d canvas", c.Margin, c.Width, c.Height)
	}
	return nil
}

// Inner is the canvas area left after the outer margins.
func (c Canvas) Inner() Size {
	return Size{
		W: float64(c.Width - 2*c.Margin),
		H: float64(c.Height - 2*c.Margin),
	}
}

// RowBand is the box available to the secondaries of a Row below a primary
// of the given size.
func (c Canvas) RowBand(primary Size) Size {
	inner := c.Inner()
	return Size{W: inner.W, H: inner.H - primary.H - float64(c.Margin)}
}

// ColumnBand is the box available to the secondaries of a Column to the
// right of a primary of the given size.
func (c Canvas) ColumnBand(primary Size) Size {
	inner := c.Inner()
	return Size{W: inner.W - primary.W - float64(c.Margin), H: inner.H}
}

const snapEpsilon = 1e-6

// snap converts solved edges to pixels edge by edge so that integer gaps
// between neighbours survive the rounding. The two floors can still leave
// one dimension wider than the source aspect allows at the other; that
// dimension is cut back to its floored aspect length, moving only the
// right or bottom edge.
func snap(x, y, w, h float64, srcW, srcH int) Rect {
	x0 := int(math.Floor(x + snapEpsilon))
	y0 := int(math.Floor(y + snapEpsilon))
	x1 := int(math.Floor(x + w + snapEpsilon))
	y1 := int(math.Floor(y + h + snapEpsilon))
	r := Rect{X: x0, Y: y0, W: max(x1-x0, 0), H: max(y1-y0, 0)}

	if srcW <= 0 || srcH <= 0 {
		return r
	}
	if maxW := r.H * srcW / srcH; r.W > maxW {
		r.W = maxW
	} else if maxH := r.W * srcH / srcW; r.H > maxH {
		r.H = maxH
	}
	return r
}
