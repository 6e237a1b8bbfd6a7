package middleware

import (
	"time"

	"clubsite/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RequestLogger is a Fiber middleware writing one logrus entry per request
// and recording it in rec. Bodies are never logged.
func RequestLogger(log *logrus.Logger, rec metrics.Recorder) fiber.Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			// Let the app's ErrorHandler write the response so the status is final.
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		latency := time.Since(start)
		status := c.Response().StatusCode()

		// Route().Path is the pattern, which keeps metric label cardinality bounded.
		route := c.Route().Path
		rec.RecordHTTPRequest(c.Method(), route, status, latency)

		entry := log.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": latency.Milliseconds(),
			"ip":         c.IP(),
		})
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			entry = entry.WithField("request_id", id)
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("request failed")
		case status >= fiber.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
		return nil
	}
}
