package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
)

// GitHub stores files through the repository contents API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

type GitHubOption func(*GitHub) error

// WithBaseURL points the client at a different API root, such as a GitHub
// Enterprise host or a test server.
func WithBaseURL(raw string) GitHubOption {
	return func(g *GitHub) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		g.client.BaseURL = u
		return nil
	}
}

// NewGitHub builds a store for repository "owner/name". An empty branch
// uses the repository default.
func NewGitHub(token, repository, branch string, opts ...GitHubOption) (*GitHub, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("repository must be owner/name, got %q", repository)
	}

	client := github.NewClient(&http.Client{Timeout: 30 * time.Second})
	if token != "" {
		client = client.WithAuthToken(token)
	}

	g := &GitHub{client: client, owner: owner, repo: repo, branch: branch}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *GitHub) Get(ctx context.Context, path string) ([]byte, string, error) {
	var opts *github.RepositoryContentGetOptions
	if g.branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: g.branch}
	}

	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("get contents %s: %w", path, err)
	}
	if file == nil {
		return nil, "", fmt.Errorf("%s is a directory", path)
	}

	// Files over 1 MB come back without inline content.
	if file.GetEncoding() == "none" && file.GetDownloadURL() != "" {
		data, err := g.download(ctx, file.GetDownloadURL())
		if err != nil {
			return nil, "", err
		}
		return data, file.GetSHA(), nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("decode contents %s: %w", path, err)
	}
	return []byte(content), file.GetSHA(), nil
}

func (g *GitHub) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := g.client.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (g *GitHub) Put(ctx context.Context, path string, data []byte, sha, message string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: data,
	}
	if g.branch != "" {
		opts.Branch = github.String(g.branch)
	}

	var resp *github.Response
	var err error
	if sha != "" {
		opts.SHA = github.String(sha)
		_, resp, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, path, opts)
	} else {
		_, resp, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, path, opts)
	}
	if err != nil {
		// 409 on a stale sha, 422 when creating over an existing file.
		if resp != nil && (resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity) {
			return fmt.Errorf("put %s: %w", path, ErrConflict)
		}
		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			return fmt.Errorf("put %s: rate limited until %s", path, rateErr.Rate.Reset.Time.Format(time.RFC3339))
		}
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}
