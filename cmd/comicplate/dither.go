package main

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/gift"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"

	"github.com/radeeyate/comicplate/internal/dither"
	"github.com/radeeyate/comicplate/internal/quantize"
)

type ditherOptions struct {
	kernel string
	format string
	output string
	height int
	blur   float32
}

func newDitherCommand(flags *globalFlags) *cobra.Command {
	opts := ditherOptions{}

	cmd := &cobra.Command{
		Use:   "dither <image>",
		Short: "Quantize a single image to the panel's gray levels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := flags.setup(); err != nil {
				return err
			}
			img, err := openImage(args[0])
			if err != nil {
				return err
			}
			return runDither(cmd.ErrOrStderr(), img, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.kernel, "kernel", "k", dither.FloydSteinberg.Name(), fmt.Sprintf("dithering kernel %v", dither.Names()))
	cmd.Flags().StringVarP(&opts.format, "format", "f", "grayscale", "output format: grayscale or packed")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "dithered.png", "output file, - for stdout")
	cmd.Flags().IntVar(&opts.height, "height", 0, "resize to this height first, keeping the aspect ratio")
	cmd.Flags().Float32Var(&opts.blur, "blur", 0, "gaussian blur sigma applied before dithering")
	return cmd
}

func runDither(report io.Writer, img image.Image, opts ditherOptions) error {
	kernel, err := dither.ByName(opts.kernel)
	if err != nil {
		return err
	}
	format, err := quantize.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if format == quantize.FormatColor {
		return fmt.Errorf("dither writes grayscale or packed output, not %s", format)
	}

	img = prepare(img, opts.height, opts.blur)
	data, err := quantize.NewEncoder(kernel, kernel).Encode(img, format)
	if err != nil {
		return err
	}
	if err := writeOutput(opts.output, data); err != nil {
		return err
	}

	b := img.Bounds()
	printReport(report, b.Dx(), b.Dy(), kernel, format, len(data))
	return nil
}

// prepare optionally downsizes and softens img before quantization.
func prepare(img image.Image, height int, blur float32) image.Image {
	if height > 0 && height != img.Bounds().Dy() {
		img = imaging.Resize(img, 0, height, imaging.Lanczos)
	}
	if blur > 0 {
		g := gift.New(gift.GaussianBlur(blur))
		dst := image.NewNRGBA(g.Bounds(img.Bounds()))
		g.Draw(dst, img)
		img = dst
	}
	return img
}

func printReport(w io.Writer, width, height int, kernel dither.Kernel, format quantize.Format, size int) {
	raw := width * height

	fmt.Fprintf(w, "\n--- Dither Report ---\n")
	fmt.Fprintf(w, "  Size: %dx%d\n", width, height)
	fmt.Fprintf(w, "  Kernel: %s (normalization %d)\n", kernel, kernel.Normalization())
	fmt.Fprintf(w, "  Format: %s\n", format)
	fmt.Fprintf(w, "  8-bit Gray Bytes: %d\n", raw)
	fmt.Fprintf(w, "  Output Bytes: %d\n", size)
	if size > 0 && raw > 0 {
		fmt.Fprintf(w, "  Size Percentage (Output/Gray * 100): %.2f%%\n", float64(size)/float64(raw)*100)
	}
	fmt.Fprintf(w, "--- End Dither Report ---\n")
}
