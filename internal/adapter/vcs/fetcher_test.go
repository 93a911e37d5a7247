package vcs

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codechat-ai/codechat/internal/port"
)

// fakeVCS serves an in-memory file tree without running git.
type fakeVCS struct {
	files map[string]string
}

func (f *fakeVCS) Clone(context.Context, string, string) error { return nil }

func (f *fakeVCS) ListFiles(context.Context, string) ([]string, error) {
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	return paths, nil
}

func (f *fakeVCS) ReadFile(_ context.Context, _ string, path string) ([]byte, error) {
	return []byte(f.files[path]), nil
}

func testFetcherConfig() FetcherConfig {
	return FetcherConfig{
		AllowedExtensions: map[string]bool{".py": true, ".go": true, ".md": true},
		MaxFileSizeBytes:  1000,
		MaxTotalFiles:     10,
		MinFileContent:    10,
	}
}

func TestFetch_FiltersAndCounts(t *testing.T) {
	git := &fakeVCS{files: map[string]string{
		"main.py":                 "def main():\n    run()\n",
		"README.md":               "# Project\n\nSome description here.\n",
		"node_modules/dep/dep.py": "def dep():\n    pass\n",
		"image.png":               "not allowed extension",
		"go.sum":                  "ignored filename with long content",
		"tiny.py":                 "x = 1",
		"big.py":                  strings.Repeat("x = 1\n", 500),
	}}

	fetcher := NewFetcher(git, testFetcherConfig())
	files, stats, err := fetcher.Fetch(context.Background(), "https://example.com/demo.git")
	require.NoError(t, err)

	got := make(map[string]bool, len(files))
	for _, f := range files {
		got[f.Path] = true
	}
	assert.True(t, got["main.py"])
	assert.True(t, got["README.md"])
	assert.False(t, got["node_modules/dep/dep.py"], "ignored directory")
	assert.False(t, got["image.png"], "extension not allowed")
	assert.False(t, got["go.sum"], "ignored filename")
	assert.False(t, got["tiny.py"], "below minimum content")
	assert.False(t, got["big.py"], "above file size ceiling")

	assert.Equal(t, 7, stats.FilesScanned)
	assert.Equal(t, 2, stats.FilesAdded)
	assert.Equal(t, 5, stats.FilesSkipped)
	assert.Equal(t, 1, stats.Languages["python"].Files)
	assert.Equal(t, 1, stats.Languages["markdown"].Files)
	assert.Positive(t, stats.TotalLines)
}

func TestFetch_RejectsNonRepositoryURL(t *testing.T) {
	fetcher := NewFetcher(&fakeVCS{}, testFetcherConfig())

	_, _, err := fetcher.Fetch(context.Background(), "ftp://example.com/repo")
	require.Error(t, err)

	var fetchErr *port.FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestFetch_FileCeiling(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 5; i++ {
		files[strings.Repeat("a", i+1)+".py"] = "def f():\n    return 0\n"
	}
	git := &fakeVCS{files: files}

	cfg := testFetcherConfig()
	cfg.MaxTotalFiles = 3
	fetcher := NewFetcher(git, cfg)

	_, _, err := fetcher.Fetch(context.Background(), "https://example.com/huge.git")
	require.Error(t, err)

	var fetchErr *port.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Reason, "too large")
}

func TestRepoName(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/widget.git": "widget",
		"https://github.com/acme/widget":     "widget",
		"git@github.com:acme/widget.git":     "widget",
		"https://example.com/widget/":        "widget",
	}
	for url, want := range cases {
		assert.Equal(t, want, RepoName(url), url)
	}
}
