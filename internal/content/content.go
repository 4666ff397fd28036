// Package content is the read side of the site: articles stored as
// directories of a content repository and the owner's public repositories.
// Every upstream call goes through the fetch cache and is retried on rate
// limiting.
package content

import (
	"context"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/folio-mcp/internal/cache"
	gh "github.com/leonardcser/folio-mcp/internal/github"
	"github.com/leonardcser/folio-mcp/internal/markdown"
	"github.com/leonardcser/folio-mcp/internal/retry"
)

// Cache lifetimes per record type.
const (
	ArticleListTTL = 30 * time.Minute
	ArticleTTL     = 30 * time.Minute
	RepoListTTL    = 10 * time.Minute
	RepoTTL        = time.Hour
	ReadmeTTL      = time.Hour
)

// Config locates the content repository and the portfolio owner.
type Config struct {
	// Owner and Repo name the repository holding one directory per article.
	Owner  string
	Repo   string
	Branch string
	// User owns the repositories listed in the portfolio.
	User string
	// RawHost serves raw files for image URLs. Defaults to
	// markdown.DefaultRawHost.
	RawHost string
	Retry   retry.Policy
}

// Client fetches and renders content. It is safe for concurrent use.
type Client struct {
	cfg      Config
	provider gh.Provider
	cache    *cache.Cache
	articles *markdown.Renderer
	readmes  *markdown.Renderer
}

// New returns a Client reading from provider and caching in c.
func New(cfg Config, provider gh.Provider, c *cache.Cache) (*Client, error) {
	if provider == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "content provider is required")
	}
	if c == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "cache is required")
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "articles repository owner and name are required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.RawHost == "" {
		cfg.RawHost = markdown.DefaultRawHost
	}
	return &Client{
		cfg:      cfg,
		provider: provider,
		cache:    c,
		articles: markdown.NewRenderer(),
		readmes:  markdown.NewRenderer(markdown.WithRawHTML(true)),
	}, nil
}

// Cache returns the cache backing the client.
func (c *Client) Cache() *cache.Cache { return c.cache }

// User returns the portfolio owner.
func (c *Client) User() string { return c.cfg.User }

// fetch serves key from the cache, retrying fn on rate limiting when the
// cache has to go upstream.
func fetch[T any](ctx context.Context, c *Client, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	return cache.GetOrFetch(ctx, c.cache, key, ttl, func(ctx context.Context) (T, error) {
		return retry.Do(ctx, c.cfg.Retry, fn)
	})
}
