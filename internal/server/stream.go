package server

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/radeeyate/comicplate/internal/compose"
	"github.com/radeeyate/comicplate/internal/quantize"
)

// keepAliveInterval paces comment lines on an idle stream. fasthttp only
// notices a vanished client when a write fails.
const keepAliveInterval = 15 * time.Second

// handleStream pushes a dithered preview on connect and after every pool
// refresh as server-sent events.
func (s *Server) handleStream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	order := c.Query("order")
	requestCtx := c.Context()
	updates, cancel := s.pool.Subscribe()
	log := s.log.WithField("remote", c.IP())

	requestCtx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		log.Debug("stream client connected")
		defer log.Debug("stream client finished")

		if !s.sendFrame(w, order) {
			return
		}
		ticker := time.NewTicker(s.keepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-updates:
				if !s.sendFrame(w, order) {
					return
				}
			case <-ticker.C:
				if !keepAlive(w) {
					return
				}
			case <-requestCtx.Done():
				return
			}
		}
	})
	return nil
}

// sendFrame writes one event and reports whether the client is still there.
func (s *Server) sendFrame(w *bufio.Writer, order string) bool {
	event, data := "newImage", ""
	png, _, err := s.render(order, quantize.FormatGrayscale)
	switch {
	case errors.Is(err, compose.ErrNoCandidates):
		event, data = "noImage", "No comics available yet."
	case err != nil:
		s.log.WithError(err).Warn("stream render failed")
		event, data = "error", oneLine(err.Error())
	default:
		data = base64.StdEncoding.EncodeToString(png)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return false
	}
	return w.Flush() == nil
}

// keepAlive writes an SSE comment and reports whether the client is still there.
func keepAlive(w *bufio.Writer) bool {
	if _, err := w.WriteString(": keepalive\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}

// oneLine keeps an error message inside a single SSE data field.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
