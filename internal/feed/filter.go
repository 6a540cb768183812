package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/store"
)

// Filter decides whether a candidate comic may enter the pool.
type Filter interface {
	Keep(ctx context.Context, e compose.Entry) (bool, error)
}

type ClassifierConfig struct {
	URL   string
	Label string
	// Timeout bounds one classification request.
	Timeout time.Duration
}

// Classification is the classifier's answer for one image.
type Classification struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Classifier keeps entries whose first image an HTTP classifier labels
// as the configured label. The image is posted as a PNG body.
type Classifier struct {
	url     string
	label   string
	timeout time.Duration
	log     *logrus.Entry
}

func NewClassifier(cfg ClassifierConfig, log *logrus.Entry) *Classifier {
	if cfg.Label == "" {
		cfg.Label = "comic"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Classifier{
		url:     cfg.URL,
		label:   cfg.Label,
		timeout: cfg.Timeout,
		log:     log.WithField("classifier", cfg.URL),
	}
}

func (c *Classifier) Classify(ctx context.Context, img *store.Image) (Classification, error) {
	var out Classification

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if timeout <= 0 {
		return out, context.DeadlineExceeded
	}

	raster, err := img.Raster()
	if err != nil {
		return out, err
	}
	var body bytes.Buffer
	if err := imaging.Encode(&body, raster, imaging.PNG); err != nil {
		return out, fmt.Errorf("encode png: %w", err)
	}

	code, resp, errs := fiber.Post(c.url).
		ContentType("image/png").
		Body(body.Bytes()).
		Timeout(timeout).
		Struct(&out)
	if code != 0 && code != fiber.StatusOK {
		return out, fmt.Errorf("classifier answered %d: %s", code, strings.TrimSpace(string(resp)))
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("classify: %w", errors.Join(errs...))
	}
	return out, nil
}

func (c *Classifier) Keep(ctx context.Context, e compose.Entry) (bool, error) {
	if len(e.Images) == 0 || e.Images[0] == nil {
		return false, nil
	}
	cls, err := c.Classify(ctx, e.Images[0])
	if err != nil {
		return false, err
	}
	c.log.WithFields(logrus.Fields{
		"entry":       e.ID,
		"label":       cls.Label,
		"probability": cls.Probability,
	}).Debug("classified entry")
	return cls.Label == c.label, nil
}
