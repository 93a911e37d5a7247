package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/codechat-ai/codechat/internal/middleware"
	"github.com/codechat-ai/codechat/internal/service"
)

// ChatHandler handles question answering over the loaded repository.
type ChatHandler struct {
	rag     *service.RAGService
	timeout time.Duration
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(rag *service.RAGService, timeout time.Duration) *ChatHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ChatHandler{rag: rag, timeout: timeout}
}

// Register sets up chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Post("/chat", h.Ask)
	router.Post("/chat/stream", h.AskStream)
}

// Ask answers a question and returns the full turn with attributions.
func (h *ChatHandler) Ask(c fiber.Ctx) error {
	session := middleware.GetSession(c)

	question, err := bindQuestion(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	turn, err := h.rag.Ask(ctx, session.ID, question)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(turn)
}

// AskStream answers a question as a Server-Sent Events stream: one
// sources event with the attributions, token events for the answer, and
// a final done event. A stream that dies mid-answer ends with an error
// event instead, so clients know the partial text is not an answer.
func (h *ChatHandler) AskStream(c fiber.Ctx) error {
	session := middleware.GetSession(c)

	question, err := bindQuestion(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	stream, errs, sources, err := h.rag.AskStream(ctx, session.ID, question)
	if err != nil {
		cancel()
		return errorResponse(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		data, _ := json.Marshal(sources)
		fmt.Fprintf(w, "event: sources\ndata: %s\n\n", string(data))
		w.Flush()

		for token := range stream {
			data, _ := json.Marshal(fiber.Map{"content": token})
			fmt.Fprintf(w, "event: token\ndata: %s\n\n", string(data))
			w.Flush()
		}

		if err := <-errs; err != nil {
			data, _ := json.Marshal(fiber.Map{"error": err.Error()})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", string(data))
			w.Flush()
			return
		}

		fmt.Fprintf(w, "event: done\ndata: {}\n\n")
		w.Flush()
	})
}

func bindQuestion(c fiber.Ctx) (string, error) {
	var body struct {
		Question string `json:"question"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}
	body.Question = strings.TrimSpace(body.Question)
	if body.Question == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "question is required")
	}
	return body.Question, nil
}
