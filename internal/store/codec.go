package store

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zstd"
	"github.com/xfmoulet/qoi"
)

// Codec is the compact lossless encoding an Image keeps in memory.
type Codec interface {
	Name() string
	Encode(w io.Writer, img image.Image) error
	Decode(r io.Reader) (image.Image, error)
}

var (
	PNG Codec = pngCodec{}
	QOI Codec = qoiCodec{}
)

func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "png":
		return PNG, nil
	case "qoi":
		return QOI, nil
	default:
		return nil, fmt.Errorf("unknown store codec %q", name)
	}
}

func CodecNames() []string {
	return []string{PNG.Name(), QOI.Name()}
}

// pngCodec trades compression ratio for encode speed.
type pngCodec struct{}

func (pngCodec) Name() string { return "png" }

func (pngCodec) Encode(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestSpeed))
}

func (pngCodec) Decode(r io.Reader) (image.Image, error) {
	return png.Decode(r)
}

// qoiCodec stores a QOI image inside a zstd frame.
type qoiCodec struct{}

func (qoiCodec) Name() string { return "qoi" }

func (qoiCodec) Encode(w io.Writer, img image.Image) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return err
	}
	if err := qoi.Encode(enc, img); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func (qoiCodec) Decode(r io.Reader) (image.Image, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return qoi.Decode(dec)
}
