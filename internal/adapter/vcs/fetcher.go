package vcs

import (
	"context"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/codechat-ai/codechat/internal/domain"
	"github.com/codechat-ai/codechat/internal/port"
)

// FetcherConfig bounds what a repository fetch will read into memory.
type FetcherConfig struct {
	AllowedExtensions map[string]bool
	MaxFileSizeBytes  int
	MaxTotalFiles     int
	MinFileContent    int
}

// ignoreDirs are directory names whose contents are never ingested even
// when tracked (vendored deps, build output, editor state).
var ignoreDirs = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"vendor":        true,
	".venv":         true,
	"venv":          true,
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	"dist":          true,
	"build":         true,
	".next":         true,
	"target":        true,
	"bin":           true,
	"obj":           true,
	".idea":         true,
	".vscode":       true,
	"coverage":      true,
}

// ignoreFiles are filenames skipped regardless of extension.
var ignoreFiles = map[string]bool{
	".gitignore":        true,
	".gitattributes":    true,
	".env":              true,
	".env.local":        true,
	".DS_Store":         true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"poetry.lock":       true,
	"go.sum":            true,
	"LICENSE":           true,
	"LICENSE.md":        true,
	"license.txt":       true,
}

// Fetcher clones a public repository into a fresh temp directory, reads
// the allow-listed source files, and removes the clone before returning,
// on success and on every failure path.
type Fetcher struct {
	git port.VCSProvider
	cfg FetcherConfig
}

// NewFetcher creates a repository fetcher.
func NewFetcher(git port.VCSProvider, cfg FetcherConfig) *Fetcher {
	return &Fetcher{git: git, cfg: cfg}
}

// Fetch returns the filtered SourceFile list for url plus the file-level
// portion of the ingest stats (chunk counts are filled in later).
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]domain.SourceFile, *domain.IngestStats, error) {
	if !isRepositoryURL(url) {
		return nil, nil, &port.FetchError{URL: url, Reason: "not a repository URL"}
	}

	tempDir, err := os.MkdirTemp("", "codechat-repo-")
	if err != nil {
		return nil, nil, &port.FetchError{URL: url, Reason: "create temp dir", Err: err}
	}
	defer func() {
		if rmErr := os.RemoveAll(tempDir); rmErr != nil {
			slog.Warn("temp dir cleanup failed", "dir", tempDir, "error", rmErr)
		}
	}()

	if err := f.git.Clone(ctx, url, tempDir); err != nil {
		return nil, nil, &port.FetchError{URL: url, Reason: "clone failed", Err: err}
	}

	paths, err := f.git.ListFiles(ctx, tempDir)
	if err != nil {
		return nil, nil, &port.FetchError{URL: url, Reason: "list files", Err: err}
	}

	stats := &domain.IngestStats{Languages: make(map[string]domain.LanguageStats)}
	var files []domain.SourceFile

	for _, p := range paths {
		stats.FilesScanned++

		if !f.wanted(p) {
			stats.FilesSkipped++
			continue
		}

		content, err := f.git.ReadFile(ctx, tempDir, p)
		if err != nil {
			slog.Warn("skipping unreadable file", "path", p, "error", err)
			stats.FilesSkipped++
			continue
		}
		if len(content) > f.cfg.MaxFileSizeBytes {
			stats.FilesSkipped++
			continue
		}
		if len(strings.TrimSpace(string(content))) < f.cfg.MinFileContent {
			stats.FilesSkipped++
			continue
		}

		lang := domain.DetectLanguage(p)
		files = append(files, domain.SourceFile{
			Path:     p,
			Language: lang,
			Content:  string(content),
		})
		stats.FilesAdded++

		lines := strings.Count(string(content), "\n") + 1
		stats.TotalLines += lines
		ls := stats.Languages[lang]
		ls.Files++
		ls.Lines += lines
		stats.Languages[lang] = ls

		if stats.FilesAdded > f.cfg.MaxTotalFiles {
			return nil, nil, &port.FetchError{
				URL:    url,
				Reason: "repository too large (file ceiling exceeded)",
			}
		}
	}

	return files, stats, nil
}

// wanted applies the extension allow-list and the ignore lists.
func (f *Fetcher) wanted(p string) bool {
	for _, part := range strings.Split(path.Dir(p), "/") {
		if ignoreDirs[strings.ToLower(part)] {
			return false
		}
	}
	base := path.Base(p)
	if ignoreFiles[base] {
		return false
	}
	ext := strings.ToLower(path.Ext(p))
	return f.cfg.AllowedExtensions[ext]
}

// isRepositoryURL accepts https and git-style public clone URLs.
func isRepositoryURL(url string) bool {
	return strings.HasPrefix(url, "https://") ||
		strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "git@")
}

// RepoName extracts a display name from a clone URL.
func RepoName(url string) string {
	name := strings.TrimSuffix(url, ".git")
	name = strings.TrimSuffix(name, "/")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
