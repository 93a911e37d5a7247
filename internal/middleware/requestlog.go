package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
)

// RequestLog logs every request with structured fields.
func RequestLog() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data BEFORE handler execution (Fiber reuses context objects)
		method := c.Method()
		path := c.Path()
		ip := c.IP()

		err := c.Next()

		sessionID := ""
		if s := GetSession(c); s != nil {
			sessionID = s.ID
		}

		slog.Info("http request",
			"method", method,
			"path", path,
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ip,
			"session_id", sessionID,
		)
		return err
	}
}
