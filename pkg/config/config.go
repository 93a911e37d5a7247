package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Server
	Port    string
	AppName string

	// Database. Empty means the in-process vector index is used.
	DatabaseURL string

	// AI provider selection: "ollama" or "openai".
	AIProvider string

	// Ollama embed endpoint
	OllamaEmbedURL   string
	OllamaEmbedModel string
	OllamaEmbedToken string // Bearer token for Ollama Cloud (empty = local)

	// Ollama chat endpoint
	OllamaChatURL   string
	OllamaChatModel string
	OllamaChatToken string

	// OpenAI-compatible endpoint
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIEmbedModel string
	OpenAIChatModel  string

	EmbeddingDimension int
	EmbedBatchSize     int

	// Optional fallback embedder. Only exercised when explicitly
	// configured; its vectors always land in a fresh index with the
	// declared fallback dimension, never mixed with the primary model's.
	FallbackEmbedURL       string
	FallbackEmbedModel     string
	FallbackEmbedDimension int

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	RetrievalK int

	// Ingestion ceilings
	MaxFileSizeBytes  int
	MaxTotalFiles     int
	MinFileContent    int
	AllowedExtensions map[string]bool

	// Provider call policy: one bounded retry beyond the first attempt by
	// default, constant interval, hard timeout per call.
	RetryAttempts   int
	RetryInterval   time.Duration
	ProviderTimeout time.Duration

	// Sessions
	SessionTTL     time.Duration
	MaxChatHistory int

	// Split markers. Empty path means the built-in tables.
	MarkerTablePath string

	// MCP
	MCPEnabled bool
	MCPPort    string

	// Frontend
	FrontendURL string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envOrDefault("PORT", "3001"),
		AppName: envOrDefault("APP_NAME", "Codebase Chat"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AIProvider: envOrDefault("AI_PROVIDER", "ollama"),

		OllamaEmbedURL:   envOrDefault("OLLAMA_EMBED_URL", envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434")),
		OllamaEmbedModel: envOrDefault("OLLAMA_EMBED_MODEL", "bge-m3"),
		OllamaEmbedToken: os.Getenv("OLLAMA_EMBED_TOKEN"),

		OllamaChatURL:   envOrDefault("OLLAMA_CHAT_URL", envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434")),
		OllamaChatModel: envOrDefault("OLLAMA_CHAT_MODEL", "qwen3"),
		OllamaChatToken: os.Getenv("OLLAMA_CHAT_TOKEN"),

		OpenAIBaseURL:    envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIEmbedModel: envOrDefault("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		OpenAIChatModel:  envOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),

		EmbeddingDimension: envOrDefaultInt("EMBEDDING_DIMENSION", 1024),
		EmbedBatchSize:     envOrDefaultInt("EMBED_BATCH_SIZE", 32),

		FallbackEmbedURL:       os.Getenv("EMBED_FALLBACK_URL"),
		FallbackEmbedModel:     os.Getenv("EMBED_FALLBACK_MODEL"),
		FallbackEmbedDimension: envOrDefaultInt("EMBED_FALLBACK_DIMENSION", 0),

		ChunkSize:    envOrDefaultInt("CHUNK_SIZE", 1000),
		ChunkOverlap: envOrDefaultInt("CHUNK_OVERLAP", 200),

		RetrievalK: envOrDefaultInt("RETRIEVAL_K", 5),

		MaxFileSizeBytes:  envOrDefaultInt("MAX_FILE_SIZE_BYTES", 500_000),
		MaxTotalFiles:     envOrDefaultInt("MAX_TOTAL_FILES", 500),
		MinFileContent:    envOrDefaultInt("MIN_FILE_CONTENT", 20),
		AllowedExtensions: extensionSet(envOrDefault("ALLOWED_EXTENSIONS", defaultExtensions)),

		RetryAttempts:   envOrDefaultInt("RETRY_ATTEMPTS", 1),
		RetryInterval:   envOrDefaultDuration("RETRY_INTERVAL", 2*time.Second),
		ProviderTimeout: envOrDefaultDuration("PROVIDER_TIMEOUT", 2*time.Minute),

		SessionTTL:     envOrDefaultDuration("SESSION_TTL", time.Hour),
		MaxChatHistory: envOrDefaultInt("MAX_CHAT_HISTORY", 50),

		MarkerTablePath: os.Getenv("MARKER_TABLE_PATH"),

		MCPEnabled: envOrDefaultBool("MCP_ENABLED", false),
		MCPPort:    envOrDefault("MCP_PORT", "3002"),

		FrontendURL: envOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}
}

// defaultExtensions is the allow-list of file extensions treated as source.
const defaultExtensions = ".py,.js,.jsx,.ts,.tsx,.java,.cpp,.c,.h,.hpp,.cs,.php,.rb,.go,.rs,.scala,.kt,.swift,.r,.sql,.md,.txt,.yml,.yaml,.json,.xml,.html,.css,.sh,.vue"

func extensionSet(csv string) map[string]bool {
	set := make(map[string]bool)
	for _, ext := range strings.Split(csv, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}
