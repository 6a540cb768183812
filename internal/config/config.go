// Package config loads comicplate settings from defaults, an optional YAML
// file, a .env file and COMICPLATE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/dither"
	"github.com/radeeyate/comicplate/internal/feed"
	"github.com/radeeyate/comicplate/internal/store"
)

const EnvPrefix = "COMICPLATE_"

// ConnectionStringEnv is the unprefixed MongoDB URI the ingest side exports.
const ConnectionStringEnv = "CONNECTION_STRING"

type Mongo struct {
	URI        string `yaml:"uri" env:"URI"`
	Database   string `yaml:"database" env:"DATABASE"`
	Collection string `yaml:"collection" env:"COLLECTION"`
	Limit      int64  `yaml:"limit" env:"LIMIT"`
}

type Config struct {
	Addr        string `yaml:"addr" env:"ADDR"`
	CORSOrigins string `yaml:"cors_origins" env:"CORS_ORIGINS"`

	Width            int     `yaml:"width" env:"WIDTH"`
	Height           int     `yaml:"height" env:"HEIGHT"`
	Margin           int     `yaml:"margin" env:"MARGIN"`
	SplitMin         float64 `yaml:"split_min" env:"SPLIT_MIN"`
	MinBandImages    int     `yaml:"min_band_images" env:"MIN_BAND_IMAGES"`
	SplitBackground  string  `yaml:"split_background" env:"SPLIT_BACKGROUND"`
	SingleBackground string  `yaml:"single_background" env:"SINGLE_BACKGROUND"`

	GrayscaleKernel string     `yaml:"grayscale_kernel" env:"GRAYSCALE_KERNEL"`
	PackedKernel    string     `yaml:"packed_kernel" env:"PACKED_KERNEL"`
	StoreCodec      string     `yaml:"store_codec" env:"STORE_CODEC"`
	Order           feed.Order `yaml:"order" env:"ORDER"`

	ComicsDir       string        `yaml:"comics_dir" env:"COMICS_DIR"`
	Mongo           Mongo         `yaml:"mongo" envPrefix:"MONGO_"`
	Classifier      Classifier    `yaml:"classifier" envPrefix:"CLASSIFIER_"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"REFRESH_INTERVAL"`
	MaxEntries      int           `yaml:"max_entries" env:"MAX_ENTRIES"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// Classifier points at an optional HTTP image classifier; candidates whose
// label differs from Label are dropped. An empty URL disables it.
type Classifier struct {
	URL     string        `yaml:"url" env:"URL"`
	Label   string        `yaml:"label" env:"LABEL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

func Default() Config {
	return Config{
		Addr:             ":8000",
		CORSOrigins:      "*",
		Width:            1200,
		Height:           825,
		Margin:           8,
		SplitMin:         0.30,
		MinBandImages:    2,
		SplitBackground:  "#ffffff",
		SingleBackground: "#000000",
		GrayscaleKernel:  dither.FloydSteinberg.Name(),
		PackedKernel:     dither.JarvisJudiceNinke.Name(),
		StoreCodec:       store.PNG.Name(),
		Order:            feed.OrderShuffle,
		ComicsDir:        "comics",
		Mongo: Mongo{
			Database:   "comicplate",
			Collection: "comics",
			Limit:      50,
		},
		Classifier: Classifier{
			Label:   "comic",
			Timeout: 10 * time.Second,
		},
		RefreshInterval: 15 * time.Minute,
		MaxEntries:      50,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load applies the YAML file at path (skipped when empty), then .env, then
// the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(env.ToMap(os.Environ())); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides fields from COMICPLATE_* variables in environ. Unset
// and empty variables leave the field alone.
func (c *Config) applyEnv(environ map[string]string) error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = environ[ConnectionStringEnv]
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := c.Compose(); err != nil {
		return err
	}
	if _, _, err := c.Kernels(); err != nil {
		return err
	}
	if _, err := store.CodecByName(c.StoreCodec); err != nil {
		return err
	}
	if _, err := feed.ParseOrder(string(c.Order)); err != nil {
		return err
	}
	if c.Classifier.URL != "" && c.Classifier.Timeout <= 0 {
		return fmt.Errorf("classifier timeout %v must be positive", c.Classifier.Timeout)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval %v must be positive", c.RefreshInterval)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("max entries %d must not be negative", c.MaxEntries)
	}
	return nil
}

// Compose converts the canvas settings for the composer.
func (c Config) Compose() (compose.Config, error) {
	split, err := ParseColor(c.SplitBackground)
	if err != nil {
		return compose.Config{}, fmt.Errorf("split background: %w", err)
	}
	single, err := ParseColor(c.SingleBackground)
	if err != nil {
		return compose.Config{}, fmt.Errorf("single background: %w", err)
	}
	cc := compose.Config{
		Width:            c.Width,
		Height:           c.Height,
		Margin:           c.Margin,
		SplitMin:         c.SplitMin,
		MinBandImages:    c.MinBandImages,
		SplitBackground:  split,
		SingleBackground: single,
	}
	return cc, cc.Validate()
}

// Kernels returns the grayscale and packed kernels.
func (c Config) Kernels() (dither.Kernel, dither.Kernel, error) {
	gray, err := dither.ByName(c.GrayscaleKernel)
	if err != nil {
		return dither.Kernel{}, dither.Kernel{}, err
	}
	packed, err := dither.ByName(c.PackedKernel)
	if err != nil {
		return dither.Kernel{}, dither.Kernel{}, err
	}
	return gray, packed, nil
}

func (c Config) Codec() (store.Codec, error) {
	return store.CodecByName(c.StoreCodec)
}

// ParseColor reads #rrggbb or #rrggbbaa.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("bad colour %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("bad colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
