package main

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/radeeyate/comicplate/internal/config"
	"github.com/radeeyate/comicplate/internal/logging"
)

var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "comicplate",
		Short: "Compose comics for a 1200x825 e-paper panel",
		Long: `comicplate lays one or more comic strips out on the panel canvas,
dithers the result down to eight gray levels and serves it as PNG or as
the packed nibble format the panel reads directly.`,
		Version:      Version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: text or json (overrides config)")

	cmd.AddCommand(newServeCommand(flags))
	cmd.AddCommand(newRenderCommand(flags))
	cmd.AddCommand(newDitherCommand(flags))

	return cmd
}

// setup loads the config and builds the logger every command shares.
func (f *globalFlags) setup() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func openImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("could not open image '%s': %w", path, err)
	}
	return img, nil
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write '%s': %w", path, err)
	}
	return nil
}
