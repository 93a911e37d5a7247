package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMarkerTable_Defaults(t *testing.T) {
	table, err := LoadMarkerTable("")
	require.NoError(t, err)

	python := table.Markers("python")
	require.NotEmpty(t, python)
	assert.Equal(t, "\nclass ", python[0])
	assert.Equal(t, blankLineFallback, python[len(python)-1])

	// Unknown languages still get the paragraph fallback.
	assert.Equal(t, []string{blankLineFallback}, table.Markers("brainfuck"))
}

func TestLoadMarkerTable_YAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markers.yml")
	content := "python:\n  - \"\\ndef \"\nelixir:\n  - \"\\ndefmodule \"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadMarkerTable(path)
	require.NoError(t, err)

	// Overridden language replaces the builtin list wholesale.
	assert.Equal(t, []string{"\ndef ", blankLineFallback}, table.Markers("python"))
	// New language is added.
	assert.Equal(t, []string{"\ndefmodule ", blankLineFallback}, table.Markers("elixir"))
	// Untouched languages keep their defaults.
	assert.Equal(t, "\nfunc ", table.Markers("go")[0])
}

func TestLoadMarkerTable_MissingFile(t *testing.T) {
	_, err := LoadMarkerTable("/does/not/exist.yml")
	assert.Error(t, err)
}
