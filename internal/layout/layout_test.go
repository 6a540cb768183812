package layout

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/radeeyate/comicplate/internal/solver"
	"github.com/radeeyate/comicplate/internal/store"
)

var testCanvas = Canvas{Width: 1200, Height: 825, Margin: 8}

func stored(t *testing.T, w, h int) *store.Image {
	t.Helper()
	img, err := store.New(store.PNG, nil).Put(image.NewGray(image.Rect(0, 0, w, h)))
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func wantRects(t *testing.T, got []Instruction, want ...Rect) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Rect != want[i] {
			t.Fatalf("instruction %d: rect %v, want %v", i, got[i].Rect, want[i])
		}
	}
}

func TestFitToBox(t *testing.T) {
	tests := []struct {
		w, h int
		box  Size
		want Size
	}{
		{200, 100, Size{1184, 809}, Size{1184, 592}},
		{100, 200, Size{1184, 809}, Size{404, 809}},
		{300, 300, Size{1184, 389}, Size{389, 389}},
		{1184, 412, Size{1184, 809}, Size{1184, 412}},
		{0, 10, Size{100, 100}, Size{}},
		{10, 10, Size{0, 100}, Size{}},
	}
	for _, tt := range tests {
		if got := FitToBox(tt.w, tt.h, tt.box); got != tt.want {
			t.Fatalf("FitToBox(%d, %d, %v) = %v, want %v", tt.w, tt.h, tt.box, got, tt.want)
		}
	}
}

func TestCanvasValidate(t *testing.T) {
	if err := testCanvas.Validate(); err != nil {
		t.Fatal(err)
	}
	for _, c := range []Canvas{{0, 10, 0}, {10, 10, 5}, {10, 10, -1}} {
		if err := c.Validate(); err == nil {
			t.Fatalf("Validate(%+v) passed", c)
		}
	}
}

func TestSingleCentred(t *testing.T) {
	e := NewEngine(testCanvas)
	got, err := e.Calculate(Single{Primary: stored(t, 200, 100)})
	if err != nil {
		t.Fatal(err)
	}
	// Width binds at 1184; the vertical offset of 116.5 snaps down.
	wantRects(t, got, Rect{X: 8, Y: 116, W: 1184, H: 592})
}

func TestSinglePortrait(t *testing.T) {
	e := NewEngine(testCanvas)
	got, err := e.Calculate(Single{Primary: stored(t, 100, 200)})
	if err != nil {
		t.Fatal(err)
	}
	r := got[0].Rect
	if r.H != 809 || r.Y != 8 {
		t.Fatalf("portrait primary %v should fill the inner height", r)
	}
	if left, right := r.X, testCanvas.Width-r.Right(); left-right > 1 || right-left > 1 {
		t.Fatalf("portrait primary %v is not centred", r)
	}
}

func TestRow(t *testing.T) {
	e := NewEngine(testCanvas)
	primary := stored(t, 1184, 412)
	a, b := stored(t, 300, 300), stored(t, 300, 300)

	got, err := e.Calculate(Row{Primary: primary, Secondary: []*store.Image{a, b}})
	if err != nil {
		t.Fatal(err)
	}
	wantRects(t, got,
		Rect{X: 8, Y: 8, W: 1184, H: 412},
		Rect{X: 207, Y: 428, W: 389, H: 389},
		Rect{X: 604, Y: 428, W: 389, H: 389},
	)
	if got[0].Image != primary || got[1].Image != a || got[2].Image != b {
		t.Fatal("instructions are not in primary, secondary order")
	}
	if gap := got[2].Rect.X - got[1].Rect.Right(); gap != testCanvas.Margin {
		t.Fatalf("gap between secondaries = %d, want %d", gap, testCanvas.Margin)
	}
	if gap := got[1].Rect.Y - got[0].Rect.Bottom(); gap != testCanvas.Margin {
		t.Fatalf("gap below primary = %d, want %d", gap, testCanvas.Margin)
	}
}

func TestColumn(t *testing.T) {
	e := NewEngine(testCanvas)
	primary := stored(t, 404, 809)
	a, b := stored(t, 772, 386), stored(t, 772, 386)

	got, err := e.Calculate(Column{Primary: primary, Secondary: []*store.Image{a, b}})
	if err != nil {
		t.Fatal(err)
	}
	wantRects(t, got,
		Rect{X: 8, Y: 8, W: 404, H: 809},
		Rect{X: 420, Y: 22, W: 772, H: 386},
		Rect{X: 420, Y: 416, W: 772, H: 386},
	)
}

func TestRowTruncatesSecondaries(t *testing.T) {
	e := NewEngine(testCanvas)
	primary := stored(t, 1184, 412)
	// Three 389-wide squares fit in 1184; a fourth does not.
	sec := []*store.Image{stored(t, 10, 10), stored(t, 10, 10), stored(t, 10, 10), stored(t, 10, 10)}

	got, err := e.Calculate(Row{Primary: primary, Secondary: sec})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d instructions, want primary plus three", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Image != sec[i-1] {
			t.Fatalf("instruction %d is not secondary %d", i, i-1)
		}
	}
}

func TestAdmit(t *testing.T) {
	band := Size{W: 1184, H: 389}
	wide := stored(t, 800, 100)
	square := stored(t, 50, 50)

	// The wide image ends the row even though a later square would fit.
	got := AdmitRow([]*store.Image{square, wide, square}, band, 8)
	if len(got) != 1 {
		t.Fatalf("AdmitRow kept %d, want 1", len(got))
	}

	if got := AdmitRow([]*store.Image{square}, Size{W: 100, H: 0}, 8); got != nil {
		t.Fatalf("empty band admitted %d images", len(got))
	}

	col := AdmitColumn([]*store.Image{square, square, square}, Size{W: 200, H: 500}, 8)
	if len(col) != 2 {
		t.Fatalf("AdmitColumn kept %d, want 2", len(col))
	}
}

func TestRowWithoutRoom(t *testing.T) {
	e := NewEngine(testCanvas)
	_, err := e.Calculate(Row{Primary: stored(t, 100, 200), Secondary: []*store.Image{stored(t, 10, 10)}})
	if !errors.Is(err, ErrNoSecondary) {
		t.Fatalf("error = %v, want ErrNoSecondary", err)
	}
}

func TestInvalidImage(t *testing.T) {
	e := NewEngine(testCanvas)
	if _, err := e.Calculate(Single{}); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("error = %v, want ErrInvalidImage", err)
	}
}

// constantSolver accepts everything and answers every variable with one value.
type constantSolver struct {
	value float64
	added int
}

func (s *constantSolver) NewVariable(name string) *solver.Variable { return solver.NewVariable(name) }
func (s *constantSolver) AddConstraint(*solver.Constraint) error   { s.added++; return nil }
func (s *constantSolver) Value(*solver.Variable) float64           { return s.value }

func TestWithSolver(t *testing.T) {
	var last *constantSolver
	e := NewEngine(testCanvas, WithSolver(func() solver.Solver {
		last = &constantSolver{value: 10}
		return last
	}))

	got, err := e.Calculate(Single{Primary: stored(t, 10, 10)})
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.added == 0 {
		t.Fatal("custom solver was not used")
	}
	wantRects(t, got, Rect{X: 10, Y: 10, W: 10, H: 10})

	// Every box lands on the same spot, which the engine must refuse.
	_, err = e.Calculate(Row{Primary: stored(t, 1184, 412), Secondary: []*store.Image{stored(t, 10, 10)}})
	if !errors.Is(err, ErrInconsistent) {
		t.Fatalf("error = %v, want ErrInconsistent", err)
	}
}

func TestSnapKeepsGaps(t *testing.T) {
	a := snap(22.5, 0, 386, 10, 386, 10)
	b := snap(22.5+386+8, 0, 386, 10, 386, 10)
	if b.X-a.Right() != 8 {
		t.Fatalf("gap %d between %v and %v", b.X-a.Right(), a, b)
	}
	if r := snap(7.9999999, 0, 10, 10, 1, 1); r.X != 8 {
		t.Fatalf("snap did not absorb float noise: %v", r)
	}
}

func TestSnapKeepsAspect(t *testing.T) {
	// Flooring both edges of a 99x86 box at x=0.9 leaves it 728 wide; 632
	// rows only allow 727.
	r := snap(0.9, 8, 632*99.0/86, 632, 99, 86)
	if r != (Rect{X: 0, Y: 8, W: 727, H: 632}) {
		t.Fatalf("snap = %v, want 727x632 at (0,8)", r)
	}
	// A portrait box with the excess on the height is cut at the bottom.
	r = snap(3, 0.9, 50, 100.4, 1, 2)
	if r != (Rect{X: 3, Y: 0, W: 50, H: 100}) {
		t.Fatalf("snap = %v, want 50x100 at (3,0)", r)
	}
}

func TestSingleKeepsAspectWithinAPixel(t *testing.T) {
	e := NewEngine(testCanvas)
	for _, size := range [][2]int{{99, 86}, {100, 200}, {333, 127}, {7, 1000}, {1000, 7}, {641, 479}, {1201, 826}} {
		w, h := size[0], size[1]
		got, err := e.Calculate(Single{Primary: stored(t, w, h)})
		if err != nil {
			t.Fatal(err)
		}
		r := got[0].Rect
		aspect := float64(w) / float64(h)
		if math.Abs(float64(r.W)-float64(r.H)*aspect) >= 1 && math.Abs(float64(r.H)-float64(r.W)/aspect) >= 1 {
			t.Fatalf("%dx%d placed as %v, off its aspect by a pixel or more", w, h, r)
		}
		inner := testCanvas.Margin
		if r.X < inner || r.Y < inner || r.Right() > testCanvas.Width-inner || r.Bottom() > testCanvas.Height-inner {
			t.Fatalf("%dx%d placed as %v, outside the margins", w, h, r)
		}
	}
}
