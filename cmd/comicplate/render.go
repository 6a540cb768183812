package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/quantize"
	"github.com/radeeyate/comicplate/internal/store"
)

func newRenderCommand(flags *globalFlags) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "render <image>...",
		Short: "Compose images onto the panel canvas",
		Long: `Compose the given images onto the panel canvas. Every image is one comic;
the first one is the primary and the rest are placed next to it when there
is room.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			f, err := quantize.ParseFormat(format)
			if err != nil {
				return err
			}
			if output == "" {
				output = "comic.png"
				if f == quantize.FormatPacked {
					output = "comic.bin"
				}
			}

			base := logrus.NewEntry(logger)
			codec, err := cfg.Codec()
			if err != nil {
				return err
			}
			st := store.New(codec, base)

			entries := make([]compose.Entry, 0, len(args))
			for _, path := range args {
				raster, err := openImage(path)
				if err != nil {
					return err
				}
				img, err := st.Put(raster)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				entries = append(entries, compose.Entry{ID: path, Title: title, Images: []*store.Image{img}})
			}

			composeCfg, err := cfg.Compose()
			if err != nil {
				return err
			}
			grayKernel, packedKernel, err := cfg.Kernels()
			if err != nil {
				return err
			}

			res, err := compose.New(composeCfg, compose.WithLogger(base)).Compose(entries)
			if err != nil {
				return err
			}
			data, err := quantize.NewEncoder(grayKernel, packedKernel).Encode(res.Canvas, f)
			if err != nil {
				return err
			}
			if err := writeOutput(output, data); err != nil {
				return err
			}

			out := cmd.ErrOrStderr()
			fmt.Fprintf(out, "layout: %s on %dx%d\n", res.Kind, composeCfg.Width, composeCfg.Height)
			for i, instr := range res.Instructions {
				fmt.Fprintf(out, "  %-40s %v\n", res.Entries[i], instr.Rect)
			}
			fmt.Fprintf(out, "wrote %d bytes of %s to %s\n", len(data), f, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "color", "output format: color, grayscale or packed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout")
	return cmd
}
