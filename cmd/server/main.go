package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/codechat-ai/codechat/internal/adapter/ai"
	"github.com/codechat-ai/codechat/internal/adapter/store"
	"github.com/codechat-ai/codechat/internal/adapter/vcs"
	"github.com/codechat-ai/codechat/internal/chunker"
	"github.com/codechat-ai/codechat/internal/handler"
	"github.com/codechat-ai/codechat/internal/mcp"
	"github.com/codechat-ai/codechat/internal/middleware"
	"github.com/codechat-ai/codechat/internal/port"
	"github.com/codechat-ai/codechat/internal/retry"
	"github.com/codechat-ai/codechat/internal/service"
	"github.com/codechat-ai/codechat/pkg/config"
)

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	cfg := config.Load()

	slog.Info("🚀 Starting Codebase Chat",
		"port", cfg.Port,
		"ai_provider", cfg.AIProvider,
		"store", storeKind(cfg),
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Vector index factory ─────────────────────────────────────────────
	var newIndex port.IndexFactory
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		newIndex = func(sessionID string) port.VectorIndex {
			return store.NewPgVectorIndex(pgStore, sessionID, uuid.NewString())
		}
	} else {
		newIndex = func(string) port.VectorIndex {
			return store.NewMemoryIndex()
		}
	}

	// ── AI provider ──────────────────────────────────────────────────────
	var aiProvider port.AIProvider
	switch cfg.AIProvider {
	case "openai":
		aiProvider = ai.NewOpenAIProvider(ai.OpenAIConfig{
			BaseURL:    cfg.OpenAIBaseURL,
			APIKey:     cfg.OpenAIAPIKey,
			EmbedModel: cfg.OpenAIEmbedModel,
			ChatModel:  cfg.OpenAIChatModel,
		})
	default:
		aiProvider = ai.NewOllamaProvider(
			ai.OllamaEndpointConfig{
				BaseURL: cfg.OllamaEmbedURL,
				Model:   cfg.OllamaEmbedModel,
				Token:   cfg.OllamaEmbedToken,
			},
			ai.OllamaEndpointConfig{
				BaseURL: cfg.OllamaChatURL,
				Model:   cfg.OllamaChatModel,
				Token:   cfg.OllamaChatToken,
			},
		)
	}

	var fallback port.AIProvider
	if cfg.FallbackEmbedURL != "" && cfg.FallbackEmbedModel != "" {
		fallback = ai.NewOllamaProvider(
			ai.OllamaEndpointConfig{BaseURL: cfg.FallbackEmbedURL, Model: cfg.FallbackEmbedModel},
			ai.OllamaEndpointConfig{BaseURL: cfg.OllamaChatURL, Model: cfg.OllamaChatModel, Token: cfg.OllamaChatToken},
		)
	}

	// ── Chunking and fetching ────────────────────────────────────────────
	markers, err := config.LoadMarkerTable(cfg.MarkerTablePath)
	if err != nil {
		slog.Error("failed to load marker table", "path", cfg.MarkerTablePath, "error", err)
		os.Exit(1)
	}
	splitter, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap, markers)
	if err != nil {
		slog.Error("invalid chunking config", "error", err)
		os.Exit(1)
	}

	fetcher := vcs.NewFetcher(vcs.NewGitProvider(), vcs.FetcherConfig{
		AllowedExtensions: cfg.AllowedExtensions,
		MaxFileSizeBytes:  cfg.MaxFileSizeBytes,
		MaxTotalFiles:     cfg.MaxTotalFiles,
		MinFileContent:    cfg.MinFileContent,
	})

	// ── Services ─────────────────────────────────────────────────────────
	policy := retry.Policy{
		Attempts: uint64(cfg.RetryAttempts),
		Interval: cfg.RetryInterval,
		Timeout:  cfg.ProviderTimeout,
	}

	sessions := service.NewSessionService(cfg.SessionTTL, cfg.MaxChatHistory)
	sessions.StartSweeper(context.Background())

	ingest := service.NewIngestService(fetcher, splitter, aiProvider, fallback, newIndex, sessions, service.IngestConfig{
		Dimension:         cfg.EmbeddingDimension,
		BatchSize:         cfg.EmbedBatchSize,
		FallbackDimension: cfg.FallbackEmbedDimension,
		Retry:             policy,
	})
	rag := service.NewRAGService(aiProvider, sessions, cfg.RetrievalK, policy)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Session-ID"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}))
	app.Use(middleware.RequestLog())

	// ── Routes ───────────────────────────────────────────────────────────
	tracker := handler.NewIngestTracker()
	sessionHandler := handler.NewSessionHandler(sessions, rag)
	repoHandler := handler.NewRepoHandler(ingest, sessions, tracker, cfg.ProviderTimeout*5)
	chatHandler := handler.NewChatHandler(rag, cfg.ProviderTimeout)

	public := app.Group("/api/v1")
	sessionHandler.RegisterPublic(public)
	public.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	api := app.Group("/api/v1", middleware.SessionMiddleware(sessions))
	sessionHandler.Register(api)
	repoHandler.Register(api)
	chatHandler.Register(api)

	// ── MCP Server (optional) ────────────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(rag, sessions, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func storeKind(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return "pgvector"
	}
	return "memory"
}
