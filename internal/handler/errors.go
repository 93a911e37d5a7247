package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/codechat-ai/codechat/internal/port"
)

// errorResponse maps domain errors to HTTP status codes with a JSON body.
func errorResponse(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var fetchErr *port.FetchError
	switch {
	case errors.Is(err, port.ErrSessionNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, port.ErrNoRepository),
		errors.Is(err, port.ErrIngestInProgress):
		status = fiber.StatusConflict
	case errors.As(err, &fetchErr):
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
