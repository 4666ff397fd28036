package content

import (
	"context"
	"slices"

	"github.com/jmgilman/go/errors"

	gh "github.com/leonardcser/folio-mcp/internal/github"
	"github.com/leonardcser/folio-mcp/internal/logger"
	"github.com/leonardcser/folio-mcp/internal/markdown"
)

// ListRepositories returns the portfolio owner's public repositories that
// are neither archived nor forks, most recently updated first.
func (c *Client) ListRepositories(ctx context.Context) ([]*gh.Repository, error) {
	if c.cfg.User == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "portfolio user is not configured")
	}
	return fetch(ctx, c, repoListKey(c.cfg.User), RepoListTTL, func(ctx context.Context) ([]*gh.Repository, error) {
		all, err := c.provider.ListRepositories(ctx, c.cfg.User)
		if err != nil {
			return nil, err
		}
		out := make([]*gh.Repository, 0, len(all))
		for _, r := range all {
			if !r.Archived && !r.Fork && !r.Private {
				out = append(out, r)
			}
		}
		return out, nil
	})
}

// TopRepositories returns at most n repositories with the most stars.
func (c *Client) TopRepositories(ctx context.Context, n int) ([]*gh.Repository, error) {
	repos, err := c.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	sorted := slices.Clone(repos)
	slices.SortStableFunc(sorted, func(a, b *gh.Repository) int { return b.Stars - a.Stars })
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted, nil
}

// GetRepository returns repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*gh.Repository, error) {
	if err := validRepo(owner, name); err != nil {
		return nil, err
	}
	return fetch(ctx, c, RepoKey(owner, name), RepoTTL, func(ctx context.Context) (*gh.Repository, error) {
		return c.provider.GetRepository(ctx, owner, name)
	})
}

// GetReadme returns the README of a repository as markdown. Repositories
// without one get a placeholder document.
func (c *Client) GetReadme(ctx context.Context, owner, name string) (string, error) {
	if err := validRepo(owner, name); err != nil {
		return "", err
	}
	return fetch(ctx, c, ReadmeKey(owner, name), ReadmeTTL, func(ctx context.Context) (string, error) {
		f, err := c.provider.GetReadme(ctx, owner, name)
		if err != nil {
			if gh.IsNotFound(err) {
				return NoReadme, nil
			}
			return "", err
		}
		text, err := f.Text()
		if err != nil {
			return "", err
		}
		return readmeMarkdown(f.Name, text)
	})
}

// RenderReadme compiles a repository README to HTML. Raw HTML is kept and
// relative images resolve against the repository's default branch.
func (c *Client) RenderReadme(ctx context.Context, owner, name string) (*markdown.Document, error) {
	text, err := c.GetReadme(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	branch := "main"
	if repo, err := c.GetRepository(ctx, owner, name); err != nil {
		logger.Warnf("content: using branch %s for %s/%s readme: %v", branch, owner, name, err)
	} else if repo.DefaultBranch != "" {
		branch = repo.DefaultBranch
	}
	return c.readmes.Compile(text, markdown.AssetBase{
		Host:   c.cfg.RawHost,
		Owner:  owner,
		Repo:   name,
		Branch: branch,
	})
}

func validRepo(owner, name string) error {
	if owner == "" || name == "" {
		return errors.New(errors.CodeInvalidInput, "repository owner and name are required")
	}
	return nil
}
