package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/codechat-ai/codechat/internal/middleware"
	"github.com/codechat-ai/codechat/internal/service"
)

// SessionHandler handles session lifecycle and history endpoints.
type SessionHandler struct {
	sessions *service.SessionService
	rag      *service.RAGService
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.SessionService, rag *service.RAGService) *SessionHandler {
	return &SessionHandler{sessions: sessions, rag: rag}
}

// RegisterPublic sets up routes that work without a session.
func (h *SessionHandler) RegisterPublic(router fiber.Router) {
	router.Post("/sessions", h.Create)
	router.Get("/examples", h.Examples)
}

// Register sets up session-scoped routes.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Get("/session", h.Get)
	router.Delete("/session", h.Delete)
	router.Get("/history", h.History)
	router.Post("/history/reset", h.ResetHistory)
}

// Create starts a new session.
func (h *SessionHandler) Create(c fiber.Ctx) error {
	session := h.sessions.Create()
	return c.Status(fiber.StatusCreated).JSON(session)
}

// Examples returns starter questions for the UI.
func (h *SessionHandler) Examples(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"questions": h.rag.ExampleQuestions()})
}

// Get returns the caller's session.
func (h *SessionHandler) Get(c fiber.Ctx) error {
	return c.JSON(middleware.GetSession(c))
}

// Delete tears down the caller's session and its index.
func (h *SessionHandler) Delete(c fiber.Ctx) error {
	session := middleware.GetSession(c)
	if err := h.sessions.Delete(c.Context(), session.ID); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// History returns the session's conversation turns.
func (h *SessionHandler) History(c fiber.Ctx) error {
	session := middleware.GetSession(c)
	history, err := h.sessions.History(session.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"history": history})
}

// ResetHistory clears the conversation, keeping the loaded repository.
func (h *SessionHandler) ResetHistory(c fiber.Ctx) error {
	session := middleware.GetSession(c)
	if err := h.sessions.ResetHistory(session.ID); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
