// Package server exposes composed comics over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/feed"
	"github.com/radeeyate/comicplate/internal/quantize"
)

// Pool is what the server needs from the feed.
type Pool interface {
	compose.Snapshotter
	Subscribe() (<-chan struct{}, func())
	Len() int
	Updated() time.Time
}

type Options struct {
	Pool     Pool
	Composer *compose.Composer
	Encoder  *quantize.Encoder
	// Order is the default candidate order, overridable per request with ?order=.
	Order       feed.Order
	CORSOrigins string
	// KeepAlive is the idle interval between stream comments. Zero means 15s.
	KeepAlive time.Duration
	Log       *logrus.Entry
}

type Server struct {
	app       *fiber.App
	pool      Pool
	composer  *compose.Composer
	encoder   *quantize.Encoder
	order     feed.Order
	keepAlive time.Duration
	log       *logrus.Entry
	accessLog io.WriteCloser
}

func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		pool:      opts.Pool,
		composer:  opts.Composer,
		encoder:   opts.Encoder,
		order:     opts.Order,
		keepAlive: opts.KeepAlive,
		log:       log.WithField("component", "server"),
	}
	if s.encoder == nil {
		s.encoder = quantize.DefaultEncoder()
	}
	if s.keepAlive <= 0 {
		s.keepAlive = keepAliveInterval
	}
	if s.order == "" {
		s.order = feed.OrderShuffle
	}
	s.accessLog = s.log.WriterLevel(logrus.InfoLevel)

	app := fiber.New(fiber.Config{
		AppName:               "comicplate",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${status} ${method} ${path} ${latency}\n",
		Output: s.accessLog,
	}))
	origins := opts.CORSOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))

	app.Get("/comic/color", s.handleComic(quantize.FormatColor))
	app.Get("/comic/grayscale", s.handleComic(quantize.FormatGrayscale))
	app.Get("/comic/inkplate", s.handleComic(quantize.FormatPacked))
	app.Get("/comic/stream", s.handleStream)
	app.Get("/healthz", s.handleHealth)

	app.Get("/", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(htmlClientPage)
	})

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.log.WithField("addr", addr).Info("server starting")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.accessLog.Close()
	return err
}

// candidates returns a snapshot in the requested order.
func (s *Server) candidates(query string) ([]compose.Entry, error) {
	order := s.order
	if query != "" {
		var err error
		if order, err = feed.ParseOrder(query); err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	return order.Arrange(s.pool.Snapshot()), nil
}

func (s *Server) render(order string, format quantize.Format) ([]byte, *compose.Result, error) {
	entries, err := s.candidates(order)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.composer.Compose(entries)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.encoder.Encode(res.Canvas, format)
	if err != nil {
		return nil, nil, err
	}
	return data, res, nil
}

func (s *Server) handleComic(format quantize.Format) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		data, res, err := s.render(c.Query("order"), format)
		if err != nil {
			return err
		}

		if format == quantize.FormatPacked {
			b := res.Canvas.Bounds()
			c.Set("X-Image-Width", strconv.Itoa(b.Dx()))
			c.Set("X-Image-Height", strconv.Itoa(b.Dy()))
		}
		c.Set(fiber.HeaderContentType, format.ContentType())
		c.Set(fiber.HeaderCacheControl, "no-store")

		s.log.WithFields(logrus.Fields{
			"format":   format,
			"variant":  res.Kind,
			"entries":  res.Entries,
			"bytes":    len(data),
			"duration": time.Since(start),
		}).Debug("served comic")
		return c.Send(data)
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := "ok"
	if s.pool.Len() == 0 {
		status = "empty"
	}
	body := fiber.Map{"status": status, "entries": s.pool.Len()}
	if updated := s.pool.Updated(); !updated.IsZero() {
		body["updated"] = updated.UTC().Format(time.RFC3339)
	}
	return c.JSON(body)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, compose.ErrNoCandidates):
		code = fiber.StatusServiceUnavailable
	}
	if code >= fiber.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
