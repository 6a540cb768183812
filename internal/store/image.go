package store

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrZeroArea = errors.New("image has zero area")
	ErrCorrupt  = errors.New("stored image data is corrupt")
)

// Mode is the colour layout of a stored raster.
type Mode int

const (
	ModeGray Mode = iota + 1
	ModeRGB
	ModeRGBA
)

func (m Mode) String() string {
	switch m {
	case ModeGray:
		return "gray"
	case ModeRGB:
		return "rgb"
	case ModeRGBA:
		return "rgba"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// modeOf picks the 8-bit mode a raster is stored in.
func modeOf(img image.Image) Mode {
	switch m := img.(type) {
	case *image.Gray, *image.Gray16:
		return ModeGray
	case interface{ Opaque() bool }:
		if m.Opaque() {
			return ModeRGB
		}
	}
	return ModeRGBA
}

// normalize converts img to the canonical raster type for mode, which is also
// the type the png decoder produces for it.
func normalize(img image.Image, mode Mode) image.Image {
	b := img.Bounds()
	r := image.Rect(0, 0, b.Dx(), b.Dy())
	switch mode {
	case ModeGray:
		if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
			return g
		}
		dst := image.NewGray(r)
		draw.Draw(dst, r, img, b.Min, draw.Src)
		return dst
	case ModeRGB:
		if c, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
			return c
		}
		dst := image.NewRGBA(r)
		draw.Draw(dst, r, img, b.Min, draw.Src)
		return dst
	default:
		if c, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
			return c
		}
		dst := image.NewNRGBA(r)
		draw.Draw(dst, r, img, b.Min, draw.Src)
		return dst
	}
}

func matchesMode(img image.Image, mode Mode) bool {
	switch mode {
	case ModeGray:
		_, ok := img.(*image.Gray)
		return ok
	case ModeRGB:
		_, ok := img.(*image.RGBA)
		return ok
	case ModeRGBA:
		_, ok := img.(*image.NRGBA)
		return ok
	}
	return false
}

// Image is a decoded raster held in its compact encoded form. Images are
// shared by pointer and must not be copied.
type Image struct {
	codec  Codec
	data   []byte
	width  int
	height int
	mode   Mode

	once   sync.Once
	raster image.Image
	err    error
}

func (i *Image) Width() int  { return i.width }
func (i *Image) Height() int { return i.height }
func (i *Image) Mode() Mode  { return i.mode }

func (i *Image) Dimensions() (int, int) {
	return i.width, i.height
}

// Size is the number of bytes held for the compact form.
func (i *Image) Size() int {
	return len(i.data)
}

func (i *Image) Codec() Codec {
	return i.codec
}

// Bytes returns a copy of the compact encoding.
func (i *Image) Bytes() []byte {
	return bytes.Clone(i.data)
}

// Decode re-derives a fresh raster from the compact form.
func (i *Image) Decode() (image.Image, error) {
	img, err := i.codec.Decode(bytes.NewReader(i.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s decode: %v", ErrCorrupt, i.codec.Name(), err)
	}
	if b := img.Bounds(); b.Dx() != i.width || b.Dy() != i.height {
		return nil, fmt.Errorf("%w: decoded %dx%d, stored %dx%d", ErrCorrupt, b.Dx(), b.Dy(), i.width, i.height)
	}
	if !matchesMode(img, i.mode) {
		// qoi always decodes to NRGBA; the conversion back is lossless for 8-bit modes.
		img = normalize(img, i.mode)
	}
	return img, nil
}

// Raster decodes the image on first use and hands every later caller the
// same raster, concurrent callers included. The result is read-only; use
// Decode for a raster that may be modified.
func (i *Image) Raster() (image.Image, error) {
	i.once.Do(func() {
		i.raster, i.err = i.Decode()
	})
	return i.raster, i.err
}

// Store re-encodes rasters into compact Images.
type Store struct {
	codec Codec
	log   *logrus.Entry
}

func New(codec Codec, log *logrus.Entry) *Store {
	if codec == nil {
		codec = PNG
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{codec: codec, log: log.WithField("component", "store")}
}

func (s *Store) Codec() Codec {
	return s.codec
}

// Put encodes img; the caller may drop its raster afterwards.
func (s *Store) Put(img image.Image) (*Image, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrZeroArea, b.Dx(), b.Dy())
	}

	mode := modeOf(img)
	raster := normalize(img, mode)

	var buf bytes.Buffer
	if err := s.codec.Encode(&buf, raster); err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.codec.Name(), err)
	}

	s.log.WithFields(logrus.Fields{
		"width":  b.Dx(),
		"height": b.Dy(),
		"mode":   mode,
		"bytes":  buf.Len(),
	}).Debug("stored image")

	return &Image{
		codec:  s.codec,
		data:   buf.Bytes(),
		width:  b.Dx(),
		height: b.Dy(),
		mode:   mode,
	}, nil
}
