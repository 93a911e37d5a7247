package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/codechat-ai/codechat/internal/middleware"
	"github.com/codechat-ai/codechat/internal/port"
	"github.com/codechat-ai/codechat/internal/service"
)

// RepoHandler handles repository loading and load-job tracking.
type RepoHandler struct {
	ingest      *service.IngestService
	sessions    *service.SessionService
	tracker     *IngestTracker
	loadTimeout time.Duration
}

// NewRepoHandler creates a new repository handler.
func NewRepoHandler(ingest *service.IngestService, sessions *service.SessionService, tracker *IngestTracker, loadTimeout time.Duration) *RepoHandler {
	if loadTimeout <= 0 {
		loadTimeout = 10 * time.Minute
	}
	return &RepoHandler{ingest: ingest, sessions: sessions, tracker: tracker, loadTimeout: loadTimeout}
}

// Register sets up repository and load-job routes.
func (h *RepoHandler) Register(router fiber.Router) {
	router.Post("/repository", h.Load)
	router.Get("/repository", h.Get)
	router.Delete("/repository", h.Unload)
	router.Get("/ingest/:jobId", h.JobStatus)
	router.Get("/ingest/:jobId/stream", h.JobStream)
}

// Load starts an asynchronous repository load and returns the job ID.
func (h *RepoHandler) Load(c fiber.Ctx) error {
	session := middleware.GetSession(c)

	var body struct {
		URL string `json:"url"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	body.URL = strings.TrimSpace(body.URL)
	if body.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
	}
	if session.Ingesting {
		return errorResponse(c, port.ErrIngestInProgress)
	}

	jobID := uuid.NewString()
	h.tracker.Create(jobID, session.ID, body.URL)

	sessionID := session.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.loadTimeout)
		defer cancel()

		repo, err := h.ingest.Load(ctx, sessionID, body.URL, func(stage string, done, total int) {
			h.tracker.Progress(jobID, stage, done, total)
		})
		if err != nil {
			slog.Error("repository load failed", "job_id", jobID, "session_id", sessionID, "error", err)
			h.tracker.Fail(jobID, err)
			return
		}
		h.tracker.Complete(jobID, repo)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}

// Get returns the currently loaded repository, if any.
func (h *RepoHandler) Get(c fiber.Ctx) error {
	session := middleware.GetSession(c)
	if session.Repository == nil {
		return errorResponse(c, port.ErrNoRepository)
	}
	return c.JSON(session.Repository)
}

// Unload drops the loaded repository, its index, and the conversation.
func (h *RepoHandler) Unload(c fiber.Ctx) error {
	session := middleware.GetSession(c)
	if err := h.sessions.ClearRepository(c.Context(), session.ID); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// JobStatus returns the current load-job status.
func (h *RepoHandler) JobStatus(c fiber.Ctx) error {
	job, ok := h.tracker.Get(c.Params("jobId"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}

// JobStream streams load-job updates via Server-Sent Events.
func (h *RepoHandler) JobStream(c fiber.Ctx) error {
	id := c.Params("jobId")

	job, ok := h.tracker.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	// If already finished, just return the final status
	if job.Status == "complete" || job.Status == "error" {
		data, _ := json.Marshal(job)
		return c.SendString(fmt.Sprintf("event: %s\ndata: %s\n\n", job.Status, string(data)))
	}

	ch := h.tracker.Subscribe(id)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.tracker.Unsubscribe(id, ch)

		// Send initial status
		data, _ := json.Marshal(job)
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", string(data))
		w.Flush()

		timeout := time.After(h.loadTimeout)
		for {
			select {
			case update, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(update)
				eventType := "progress"
				if update.Status == "complete" || update.Status == "error" {
					eventType = update.Status
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, string(data))
				w.Flush()

				if update.Status == "complete" || update.Status == "error" {
					return
				}
			case <-timeout:
				slog.Warn("SSE timeout", "job_id", id)
				return
			}
		}
	})
}
