// Package layout places comic images on the fixed canvas.
//
// Every arrangement is expressed as a linear constraint problem: each image
// gets a box of four unknowns, the geometry (aspect ratio, margins, shared
// edges, centring) is added as required relations and a couple of soft
// relations ask the solver to grow the boxes into the free space.
package layout

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/radeeyate/comicplate/internal/solver"
	"github.com/radeeyate/comicplate/internal/store"
)

var (
	ErrNoSecondary  = errors.New("no secondary image fits next to the primary")
	ErrInvalidImage = errors.New("image has no usable aspect ratio")
	ErrInconsistent = errors.New("solved layout breaks canvas invariants")
)

type Kind int

const (
	KindSingle Kind = iota
	KindRow
	KindColumn
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindRow:
		return "row"
	case KindColumn:
		return "column"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Variant is one of Single, Row or Column.
type Variant interface {
	Kind() Kind
	Images() []*store.Image
	variant()
}

// Single centres the primary on the whole canvas.
type Single struct {
	Primary *store.Image
}

// Row puts the primary on top and the secondaries side by side beneath it.
type Row struct {
	Primary   *store.Image
	Secondary []*store.Image
}

// Column puts the primary on the left and stacks the secondaries to its right.
type Column struct {
	Primary   *store.Image
	Secondary []*store.Image
}

func (Single) Kind() Kind { return KindSingle }
func (Row) Kind() Kind    { return KindRow }
func (Column) Kind() Kind { return KindColumn }

func (v Single) Images() []*store.Image { return []*store.Image{v.Primary} }
func (v Row) Images() []*store.Image    { return append([]*store.Image{v.Primary}, v.Secondary...) }
func (v Column) Images() []*store.Image { return append([]*store.Image{v.Primary}, v.Secondary...) }

func (Single) variant() {}
func (Row) variant()    {}
func (Column) variant() {}

// Instruction pairs an image with the rectangle it is drawn into.
type Instruction struct {
	Image *store.Image
	Rect  Rect
}

type Engine struct {
	canvas    Canvas
	newSolver func() solver.Solver
	log       *logrus.Entry
}

type Option func(*Engine)

// WithSolver swaps the constraint solver implementation.
func WithSolver(factory func() solver.Solver) Option {
	return func(e *Engine) { e.newSolver = factory }
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

func NewEngine(canvas Canvas, opts ...Option) *Engine {
	e := &Engine{
		canvas:    canvas,
		newSolver: func() solver.Solver { return solver.NewSimplex() },
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("component", "layout")
	return e
}

func (e *Engine) Canvas() Canvas {
	return e.canvas
}

// Calculate resolves the rectangles for v, primary first.
func (e *Engine) Calculate(v Variant) ([]Instruction, error) {
	if err := e.canvas.Validate(); err != nil {
		return nil, err
	}
	for _, img := range v.Images() {
		if img == nil || img.Width() <= 0 || img.Height() <= 0 {
			return nil, ErrInvalidImage
		}
	}

	var (
		instructions []Instruction
		err          error
	)
	switch v := v.(type) {
	case Single:
		instructions, err = e.single(v.Primary)
	case Row:
		instructions, err = e.row(v.Primary, v.Secondary)
	case Column:
		instructions, err = e.column(v.Primary, v.Secondary)
	default:
		return nil, fmt.Errorf("unsupported layout variant %T", v)
	}
	if err != nil {
		return nil, fmt.Errorf("%s layout: %w", v.Kind(), err)
	}

	if err := e.check(instructions); err != nil {
		return nil, fmt.Errorf("%s layout: %w", v.Kind(), err)
	}
	for i, instr := range instructions {
		e.log.WithFields(logrus.Fields{
			"variant": v.Kind(),
			"index":   i,
			"rect":    instr.Rect,
		}).Debug("placed image")
	}
	return instructions, nil
}

// AdmitRow returns the leading secondaries whose fitted widths, plus margins,
// fit the band. The first one that does not fit ends the row.
func AdmitRow(secondary []*store.Image, band Size, margin int) []*store.Image {
	return admit(secondary, band, margin, func(s Size) float64 { return s.W }, band.W)
}

// AdmitColumn is AdmitRow along the vertical axis.
func AdmitColumn(secondary []*store.Image, band Size, margin int) []*store.Image {
	return admit(secondary, band, margin, func(s Size) float64 { return s.H }, band.H)
}

func admit(secondary []*store.Image, band Size, margin int, length func(Size) float64, limit float64) []*store.Image {
	if band.W <= 0 || band.H <= 0 {
		return nil
	}
	var (
		kept   []*store.Image
		filled float64
	)
	for _, img := range secondary {
		fit := FitToBox(img.Width(), img.Height(), band)
		if fit.W <= 0 || fit.H <= 0 {
			break
		}
		need := filled + length(fit)
		if len(kept) > 0 {
			need += float64(margin)
		}
		if need > limit {
			break
		}
		filled = need
		kept = append(kept, img)
	}
	return kept
}

func (e *Engine) check(instructions []Instruction) error {
	for i, a := range instructions {
		if !a.Rect.Within(e.canvas.Width, e.canvas.Height) {
			return fmt.Errorf("%w: %v outside %dx%d", ErrInconsistent, a.Rect, e.canvas.Width, e.canvas.Height)
		}
		for _, b := range instructions[i+1:] {
			if a.Rect.Overlaps(b.Rect) {
				return fmt.Errorf("%w: %v overlaps %v", ErrInconsistent, a.Rect, b.Rect)
			}
		}
	}
	return nil
}
