package port

import (
	"context"

	"github.com/codechat-ai/codechat/internal/domain"
)

// VCSProvider abstracts the version control operations ingestion needs:
// cloning, enumerating, and reading files.
type VCSProvider interface {
	// Clone shallow-clones a repository from url into dest.
	Clone(ctx context.Context, url string, dest string) error

	// ListFiles returns all tracked file paths in the repository at HEAD.
	ListFiles(ctx context.Context, repoPath string) ([]string, error)

	// ReadFile reads a file's content from the working tree.
	ReadFile(ctx context.Context, repoPath string, filePath string) ([]byte, error)
}

// RepositoryFetcher produces the filtered SourceFile list for a public
// repository URL. Implementations own the temp directory lifecycle: the
// clone is removed before Fetch returns, on success and on every failure
// path.
type RepositoryFetcher interface {
	Fetch(ctx context.Context, url string) ([]domain.SourceFile, *domain.IngestStats, error)
}
