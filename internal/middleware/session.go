package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
)

// SessionResolver looks up a session by ID.
type SessionResolver interface {
	Get(id string) (*domain.Session, error)
}

// SessionMiddleware creates a Fiber middleware that resolves the caller's
// session and injects it into the request context.
func SessionMiddleware(resolver SessionResolver) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get("X-Session-ID")

		// Fallback: ?session= query param (for SSE/EventSource which can't set headers)
		if id == "" {
			id = c.Query("session")
		}

		if id == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing session id",
			})
		}

		session, err := resolver.Get(id)
		if err != nil {
			if errors.Is(err, port.ErrSessionNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "session not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals("session", session)
		return c.Next()
	}
}

// GetSession extracts the resolved session from Fiber locals.
func GetSession(c fiber.Ctx) *domain.Session {
	s, ok := c.Locals("session").(*domain.Session)
	if !ok {
		return nil
	}
	return s
}
