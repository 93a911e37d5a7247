package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitProvider implements port.VCSProvider using the git CLI.
type GitProvider struct{}

// NewGitProvider creates a new Git VCS provider.
func NewGitProvider() *GitProvider {
	return &GitProvider{}
}

// Clone shallow-clones a repository into dest. Terminal prompts are
// disabled so a private repository fails fast instead of hanging.
func (g *GitProvider) Clone(ctx context.Context, url string, dest string) error {
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, dest)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("git clone %s: %s: %w", url, msg, err)
		}
		return fmt.Errorf("git clone %s: %w", url, err)
	}
	return nil
}

// ListFiles returns all tracked file paths in the repository at HEAD.
// Using ls-tree rather than a directory walk keeps .git internals and
// untracked build output out of the listing.
func (g *GitProvider) ListFiles(ctx context.Context, repoPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "ls-tree", "-r", "--name-only", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-tree: %w", err)
	}

	var result []string
	for _, f := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		f = strings.TrimSpace(f)
		if f != "" {
			result = append(result, f)
		}
	}
	return result, nil
}

// ReadFile reads a file's content from the working tree.
func (g *GitProvider) ReadFile(ctx context.Context, repoPath string, filePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(repoPath, filePath))
}
