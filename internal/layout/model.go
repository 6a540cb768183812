package layout

import (
	"fmt"

	"github.com/radeeyate/comicplate/internal/solver"
	"github.com/radeeyate/comicplate/internal/store"
)

// box holds the four unknowns of one placed image.
type box struct {
	image      *store.Image
	x, y, w, h *solver.Variable
}

func (b *box) left() solver.Expression   { return solver.Var(b.x) }
func (b *box) top() solver.Expression    { return solver.Var(b.y) }
func (b *box) width() solver.Expression  { return solver.Var(b.w) }
func (b *box) height() solver.Expression { return solver.Var(b.h) }

func (b *box) right() solver.Expression {
	return solver.Var(b.x).Plus(solver.Var(b.w))
}

func (b *box) bottom() solver.Expression {
	return solver.Var(b.y).Plus(solver.Var(b.h))
}

func (b *box) aspect() float64 {
	return float64(b.image.Width()) / float64(b.image.Height())
}

// model accumulates constraints on one solver and keeps the first error.
type model struct {
	s      solver.Solver
	canvas Canvas
	err    error
}

func (e *Engine) newModel() *model {
	return &model{s: e.newSolver(), canvas: e.canvas}
}

func (m *model) newBox(name string, img *store.Image) *box {
	return &box{
		image: img,
		x:     m.s.NewVariable(name + ".x"),
		y:     m.s.NewVariable(name + ".y"),
		w:     m.s.NewVariable(name + ".w"),
		h:     m.s.NewVariable(name + ".h"),
	}
}

func (m *model) add(cs ...*solver.Constraint) {
	for _, c := range cs {
		if m.err != nil {
			return
		}
		if err := m.s.AddConstraint(c); err != nil {
			m.err = fmt.Errorf("add %s: %w", c, err)
		}
	}
}

func (m *model) margin() solver.Expression {
	return solver.Const(float64(m.canvas.Margin))
}

func (m *model) canvasWidth() solver.Expression {
	return solver.Const(float64(m.canvas.Width))
}

func (m *model) canvasHeight() solver.Expression {
	return solver.Const(float64(m.canvas.Height))
}

// bound keeps b's aspect ratio and keeps it inside the canvas margins.
func (m *model) bound(b *box) {
	req := solver.Required
	m.add(
		solver.Eq(b.width(), b.height().Scale(b.aspect()), req),
		solver.Ge(b.height(), solver.Const(0), req),
		solver.Ge(b.left(), m.margin(), req),
		solver.Ge(b.top(), m.margin(), req),
		solver.Le(b.right(), m.canvasWidth().Minus(m.margin()), req),
		solver.Le(b.bottom(), m.canvasHeight().Minus(m.margin()), req),
	)
}

func (m *model) centreHorizontally(first, last *box) {
	m.add(solver.Eq(first.left(), m.canvasWidth().Minus(last.right()), solver.Required))
}

func (m *model) centreVertically(first, last *box) {
	m.add(solver.Eq(first.top(), m.canvasHeight().Minus(last.bottom()), solver.Required))
}

func (m *model) prefer(b *box, size Size, strength solver.Strength) {
	m.add(
		solver.Eq(b.width(), solver.Const(size.W), strength),
		solver.Eq(b.height(), solver.Const(size.H), strength),
	)
}

func (m *model) rect(b *box) Rect {
	return snap(m.s.Value(b.x), m.s.Value(b.y), m.s.Value(b.w), m.s.Value(b.h), b.image.Width(), b.image.Height())
}

func (m *model) instructions(boxes ...*box) []Instruction {
	out := make([]Instruction, len(boxes))
	for i, b := range boxes {
		out[i] = Instruction{Image: b.image, Rect: m.rect(b)}
	}
	return out
}

func (e *Engine) single(primary *store.Image) ([]Instruction, error) {
	m := e.newModel()
	p := m.newBox("primary", primary)

	m.bound(p)
	m.centreHorizontally(p, p)
	m.centreVertically(p, p)
	// Both cannot hold unless the aspect ratios match; the solver grows the
	// box until one of them does.
	m.prefer(p, e.canvas.Inner(), solver.Strong)

	if m.err != nil {
		return nil, m.err
	}
	return m.instructions(p), nil
}

func (e *Engine) row(primary *store.Image, secondary []*store.Image) ([]Instruction, error) {
	natural := FitToBox(primary.Width(), primary.Height(), e.canvas.Inner())
	band := e.canvas.RowBand(natural)
	secondary = AdmitRow(secondary, band, e.canvas.Margin)
	if len(secondary) == 0 {
		return nil, ErrNoSecondary
	}

	m := e.newModel()
	p := m.newBox("primary", primary)
	boxes := make([]*box, len(secondary))
	for i, img := range secondary {
		boxes[i] = m.newBox(fmt.Sprintf("secondary%d", i), img)
	}
	first, last := boxes[0], boxes[len(boxes)-1]

	m.bound(p)
	for _, b := range boxes {
		m.bound(b)
	}

	for i, b := range boxes {
		// The row starts one margin below the primary and shares top and bottom edges.
		m.add(solver.Eq(b.top(), p.bottom().Plus(m.margin()), solver.Required))
		if i > 0 {
			prev := boxes[i-1]
			m.add(
				solver.Eq(b.height(), first.height(), solver.Required),
				solver.Eq(b.left(), prev.right().Plus(m.margin()), solver.Required),
			)
		}
	}

	m.centreHorizontally(p, p)
	m.centreHorizontally(first, last)
	m.centreVertically(p, first)

	m.prefer(p, natural, solver.Strong)
	m.add(solver.Eq(first.height(), solver.Const(band.H), solver.Medium))

	if m.err != nil {
		return nil, m.err
	}
	return m.instructions(append([]*box{p}, boxes...)...), nil
}

func (e *Engine) column(primary *store.Image, secondary []*store.Image) ([]Instruction, error) {
	natural := FitToBox(primary.Width(), primary.Height(), e.canvas.Inner())
	band := e.canvas.ColumnBand(natural)
	secondary = AdmitColumn(secondary, band, e.canvas.Margin)
	if len(secondary) == 0 {
		return nil, ErrNoSecondary
	}

	m := e.newModel()
	p := m.newBox("primary", primary)
	boxes := make([]*box, len(secondary))
	for i, img := range secondary {
		boxes[i] = m.newBox(fmt.Sprintf("secondary%d", i), img)
	}
	first, last := boxes[0], boxes[len(boxes)-1]

	m.bound(p)
	for _, b := range boxes {
		m.bound(b)
	}

	for i, b := range boxes {
		// The column starts one margin right of the primary and shares left and right edges.
		m.add(solver.Eq(b.left(), p.right().Plus(m.margin()), solver.Required))
		if i > 0 {
			prev := boxes[i-1]
			m.add(
				solver.Eq(b.width(), first.width(), solver.Required),
				solver.Eq(b.top(), prev.bottom().Plus(m.margin()), solver.Required),
			)
		}
	}

	m.centreVertically(p, p)
	m.centreVertically(first, last)
	m.centreHorizontally(p, first)

	m.prefer(p, natural, solver.Strong)
	m.add(solver.Eq(first.width(), solver.Const(band.W), solver.Medium))

	if m.err != nil {
		return nil, m.err
	}
	return m.instructions(append([]*box{p}, boxes...)...), nil
}
