package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "ollama", cfg.AIProvider)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.RetrievalK)
	assert.Equal(t, 1024, cfg.EmbeddingDimension)
	assert.Equal(t, 500_000, cfg.MaxFileSizeBytes)
	assert.Equal(t, 500, cfg.MaxTotalFiles)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, 50, cfg.MaxChatHistory)
	assert.False(t, cfg.MCPEnabled)

	assert.True(t, cfg.AllowedExtensions[".go"])
	assert.True(t, cfg.AllowedExtensions[".py"])
	assert.False(t, cfg.AllowedExtensions[".exe"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("RETRY_INTERVAL", "5s")
	t.Setenv("MCP_ENABLED", "true")
	t.Setenv("ALLOWED_EXTENSIONS", "go, py")

	cfg := Load()

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "openai", cfg.AIProvider)
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, 5*time.Second, cfg.RetryInterval)
	assert.True(t, cfg.MCPEnabled)

	assert.True(t, cfg.AllowedExtensions[".go"])
	assert.True(t, cfg.AllowedExtensions[".py"])
	assert.False(t, cfg.AllowedExtensions[".js"])
}

func TestLoad_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("SESSION_TTL", "eventually")

	cfg := Load()
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}

func TestExtensionSet_NormalizesEntries(t *testing.T) {
	set := extensionSet(".Go, py ,,  .RS")
	assert.True(t, set[".go"])
	assert.True(t, set[".py"])
	assert.True(t, set[".rs"])
	assert.Len(t, set, 3)
}
