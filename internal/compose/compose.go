// Package compose decides how the candidate comics share the canvas and
// paints the result.
package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"

	"github.com/radeeyate/comicplate/internal/layout"
	"github.com/radeeyate/comicplate/internal/store"
)

var (
	ErrNoCandidates = errors.New("no candidate comics to compose")
	ErrEmptyEntry   = errors.New("comic entry has no images")
	ErrZeroArea     = errors.New("comic image has zero area")
)

type Config struct {
	Width  int
	Height int
	Margin int
	// SplitMin is the share of the canvas a leftover band must exceed before
	// secondaries are placed into it.
	SplitMin float64
	// MinBandImages is the least number of secondaries that must fit the
	// band before a Row or Column is used.
	MinBandImages    int
	SplitBackground  color.NRGBA
	SingleBackground color.NRGBA
}

func DefaultConfig() Config {
	return Config{
		Width:            1200,
		Height:           825,
		Margin:           8,
		SplitMin:         0.30,
		MinBandImages:    2,
		SplitBackground:  color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		SingleBackground: color.NRGBA{A: 255},
	}
}

func (c Config) Canvas() layout.Canvas {
	return layout.Canvas{Width: c.Width, Height: c.Height, Margin: c.Margin}
}

func (c Config) Validate() error {
	if err := c.Canvas().Validate(); err != nil {
		return err
	}
	if c.SplitMin < 0 || c.SplitMin >= 1 {
		return fmt.Errorf("split fraction %v must be in [0, 1)", c.SplitMin)
	}
	if c.MinBandImages < 1 {
		return fmt.Errorf("a split band needs at least 1 image, got %d", c.MinBandImages)
	}
	return nil
}

// Entry is one comic from the feed; its first image is the one laid out.
type Entry struct {
	ID     string
	Title  string
	Images []*store.Image
}

// Snapshotter hands out an immutable copy of the current candidate pool.
type Snapshotter interface {
	Snapshot() []Entry
}

type Result struct {
	Canvas       *image.NRGBA
	Kind         layout.Kind
	Background   color.NRGBA
	Instructions []layout.Instruction
	// Entries are the IDs of the comics that made it onto the canvas, in
	// drawing order.
	Entries []string
}

type Composer struct {
	cfg    Config
	engine *layout.Engine
	log    *logrus.Entry
}

type Option func(*Composer)

func WithEngine(engine *layout.Engine) Option {
	return func(c *Composer) { c.engine = engine }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Composer) { c.log = log }
}

func New(cfg Config, opts ...Option) *Composer {
	c := &Composer{cfg: cfg, log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "compose")
	if c.engine == nil {
		c.engine = layout.NewEngine(cfg.Canvas(), layout.WithLogger(c.log))
	}
	return c
}

func (c *Composer) Config() Config {
	return c.cfg
}

// ComposeFrom takes exactly one snapshot of the pool and composes it.
func (c *Composer) ComposeFrom(pool Snapshotter) (*Result, error) {
	return c.Compose(pool.Snapshot())
}

// Compose lays out entries in priority order and paints the canvas.
func (c *Composer) Compose(entries []Entry) (*Result, error) {
	start := time.Now()

	variant, ids, err := c.Plan(entries)
	if err != nil {
		return nil, err
	}

	instructions, err := c.engine.Calculate(variant)
	if err != nil {
		return nil, err
	}

	background := c.cfg.SplitBackground
	if len(instructions) == 1 {
		background = c.cfg.SingleBackground
	}

	canvas, err := draw(c.cfg.Width, c.cfg.Height, background, instructions)
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"variant":  variant.Kind(),
		"images":   len(instructions),
		"duration": time.Since(start),
	}).Info("composed canvas")

	return &Result{
		Canvas:       canvas,
		Kind:         variant.Kind(),
		Background:   background,
		Instructions: instructions,
		Entries:      ids[:len(instructions)],
	}, nil
}

// Plan picks the arrangement for entries without drawing anything. The
// returned IDs follow the variant's image order.
func (c *Composer) Plan(entries []Entry) (layout.Variant, []string, error) {
	if len(entries) == 0 {
		return nil, nil, ErrNoCandidates
	}
	for _, e := range entries {
		if len(e.Images) == 0 || e.Images[0] == nil {
			return nil, nil, fmt.Errorf("%w: %q", ErrEmptyEntry, e.ID)
		}
		if w, h := e.Images[0].Dimensions(); w <= 0 || h <= 0 {
			return nil, nil, fmt.Errorf("%w: %q is %dx%d", ErrZeroArea, e.ID, w, h)
		}
	}

	canvas := c.cfg.Canvas()
	primary := entries[0].Images[0]
	fit := layout.FitToBox(primary.Width(), primary.Height(), canvas.Inner())
	rest := entries[1:]

	width, height := float64(c.cfg.Width), float64(c.cfg.Height)

	if len(rest) > 0 && height-fit.H > height*c.cfg.SplitMin {
		band := canvas.RowBand(fit)
		picked, ids := pick(rest, func(img *store.Image, filled float64) (float64, bool) {
			s := layout.FitToBox(img.Width(), img.Height(), band)
			return fitsAlong(filled, s.W, band.W, s, c.cfg.Margin)
		})
		if len(picked) >= c.cfg.MinBandImages {
			return layout.Row{Primary: primary, Secondary: picked}, append([]string{entries[0].ID}, ids...), nil
		}
		c.log.WithField("placed", len(picked)).Debug("row split rejected")
	}

	if len(rest) > 0 && width-fit.W > width*c.cfg.SplitMin {
		band := canvas.ColumnBand(fit)
		picked, ids := pick(rest, func(img *store.Image, filled float64) (float64, bool) {
			s := layout.FitToBox(img.Width(), img.Height(), band)
			return fitsAlong(filled, s.H, band.H, s, c.cfg.Margin)
		})
		if len(picked) >= c.cfg.MinBandImages {
			return layout.Column{Primary: primary, Secondary: picked}, append([]string{entries[0].ID}, ids...), nil
		}
		c.log.WithField("placed", len(picked)).Debug("column split rejected")
	}

	return layout.Single{Primary: primary}, []string{entries[0].ID}, nil
}

// pick walks the candidates in order and keeps every one that still fits,
// skipping those that do not.
func pick(entries []Entry, fits func(img *store.Image, filled float64) (float64, bool)) ([]*store.Image, []string) {
	var (
		picked []*store.Image
		ids    []string
		filled float64
	)
	for _, e := range entries {
		img := e.Images[0]
		next, ok := fits(img, filled)
		if !ok {
			continue
		}
		filled = next
		picked = append(picked, img)
		ids = append(ids, e.ID)
	}
	return picked, ids
}

func fitsAlong(filled, length, limit float64, size layout.Size, margin int) (float64, bool) {
	if size.W <= 0 || size.H <= 0 {
		return filled, false
	}
	next := filled + length
	if filled > 0 {
		next += float64(margin)
	}
	return next, next <= limit
}

// draw resizes every instruction's image into its rectangle and overlays it
// onto a fresh canvas, primary first. Rasters are shared with concurrent
// compositions of the same images.
func draw(width, height int, background color.NRGBA, instructions []layout.Instruction) (*image.NRGBA, error) {
	canvas := imaging.New(width, height, background)

	for _, instr := range instructions {
		if instr.Rect.Empty() {
			continue
		}
		raster, err := instr.Image.Raster()
		if err != nil {
			return nil, fmt.Errorf("decode image for %v: %w", instr.Rect, err)
		}
		resized := resize.Resize(uint(instr.Rect.W), uint(instr.Rect.H), raster, resize.Lanczos3)
		canvas = imaging.Overlay(canvas, resized, instr.Rect.Min(), 1.0)
	}
	return canvas, nil
}
