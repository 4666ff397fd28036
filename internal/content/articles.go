package content

import (
	"context"
	"encoding/json"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/leonardcser/folio-mcp/internal/cache"
	gh "github.com/leonardcser/folio-mcp/internal/github"
	"github.com/leonardcser/folio-mcp/internal/logger"
	"github.com/leonardcser/folio-mcp/internal/markdown"
	"github.com/leonardcser/folio-mcp/internal/retry"
)

const (
	metadataFile = "metadata.json"
	bodyFile     = "index.mdx"

	maxConcurrentMetadata = 8
)

// Author credits an article writer.
type Author struct {
	Name     string `json:"name"`
	LinkedIn string `json:"linkedIn,omitempty"`
}

// Metadata is the contents of an article's metadata.json.
type Metadata struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Date      string   `json:"date"`
	Tags      []string `json:"tags"`
	Authors   []Author `json:"authors"`
	Published bool     `json:"published"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// Time parses Date. Unparseable dates yield the zero time.
func (m Metadata) Time() time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, m.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// HasTag reports whether the article carries tag, ignoring case.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ArticlePreview is a listing entry.
type ArticlePreview struct {
	Slug     string   `json:"slug"`
	Metadata Metadata `json:"metadata"`
}

// Article is a published article with its raw body.
type Article struct {
	Slug     string   `json:"slug"`
	Metadata Metadata `json:"metadata"`
	Body     string   `json:"body"`
}

// RenderedArticle is an article compiled to HTML.
type RenderedArticle struct {
	Article
	Document *markdown.Document `json:"document"`
}

type rawAuthor struct {
	Name     string `json:"name"`
	LinkedIn string `json:"linkedIn"`
	Linkedin string `json:"linkedin"`
}

type rawMetadata struct {
	Title     string       `json:"title"`
	Summary   string       `json:"summary"`
	Date      string       `json:"date"`
	Tags      *[]string    `json:"tags"`
	Authors   *[]rawAuthor `json:"authors"`
	Published bool         `json:"published"`
}

// parseMetadata decodes and validates metadata.json. Title, summary, date,
// tags and authors are required.
func parseMetadata(slug, data string) (Metadata, error) {
	var raw rawMetadata
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		err = errors.Wrapf(err, errors.CodeSchemaFailed, "invalid metadata structure for %s", slug)
		return Metadata{}, errors.WithContext(err, "slug", slug)
	}

	var missing []string
	if raw.Title == "" {
		missing = append(missing, "title")
	}
	if raw.Summary == "" {
		missing = append(missing, "summary")
	}
	if raw.Date == "" {
		missing = append(missing, "date")
	}
	if raw.Tags == nil {
		missing = append(missing, "tags")
	}
	if raw.Authors == nil {
		missing = append(missing, "authors")
	}
	if len(missing) > 0 {
		err := errors.Newf(errors.CodeSchemaFailed, "invalid metadata structure for %s: missing %s",
			slug, strings.Join(missing, ", "))
		return Metadata{}, errors.WithContext(err, "slug", slug)
	}

	authors := make([]Author, 0, len(*raw.Authors))
	for _, a := range *raw.Authors {
		authors = append(authors, Author{Name: a.Name, LinkedIn: firstNonEmpty(a.LinkedIn, a.Linkedin)})
	}
	return Metadata{
		Title:     raw.Title,
		Summary:   raw.Summary,
		Date:      raw.Date,
		Tags:      *raw.Tags,
		Authors:   authors,
		Published: raw.Published,
	}, nil
}

// validSlug rejects slugs that would leave the article's directory.
func validSlug(slug string) error {
	if slug == "" || slug == "." || slug == ".." || strings.ContainsAny(slug, "/\\") {
		err := errors.Newf(errors.CodeInvalidInput, "invalid article slug %q", slug)
		return errors.WithContext(err, "slug", slug)
	}
	return nil
}

func articleNotFound(slug string) error {
	return gh.NewNotFoundError("article", slug)
}

// ListArticles returns published articles, newest first. Articles whose
// metadata cannot be loaded are logged and skipped. A missing content
// repository yields an empty list.
func (c *Client) ListArticles(ctx context.Context) ([]ArticlePreview, error) {
	return cache.GetOrFetch(ctx, c.cache, KeyArticleList, ArticleListTTL, c.listArticles)
}

func (c *Client) listArticles(ctx context.Context) ([]ArticlePreview, error) {
	entries, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) ([]gh.DirEntry, error) {
		return c.provider.ListDirectory(ctx, c.cfg.Owner, c.cfg.Repo, "", c.cfg.Branch)
	})
	if err != nil {
		if gh.IsNotFound(err) {
			logger.Warnf("content: repository %s/%s not found or empty", c.cfg.Owner, c.cfg.Repo)
			return []ArticlePreview{}, nil
		}
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.Type == gh.EntryDir {
			dirs = append(dirs, e.Name)
		}
	}

	found := make([]*ArticlePreview, len(dirs))
	var g errgroup.Group
	g.SetLimit(maxConcurrentMetadata)
	for i, slug := range dirs {
		g.Go(func() error {
			meta, err := c.metadata(ctx, slug)
			if err != nil {
				logger.Warnf("content: failed to fetch metadata for %s: %v", slug, err)
				return nil
			}
			found[i] = &ArticlePreview{Slug: slug, Metadata: meta}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]ArticlePreview, 0, len(found))
	for _, p := range found {
		if p != nil && p.Metadata.Published {
			out = append(out, *p)
		}
	}
	slices.SortStableFunc(out, func(a, b ArticlePreview) int {
		return b.Metadata.Time().Compare(a.Metadata.Time())
	})
	logger.Debugf("content: listed %d published articles of %d directories", len(out), len(dirs))
	return out, nil
}

// LatestArticles returns at most n of the newest published articles.
func (c *Client) LatestArticles(ctx context.Context, n int) ([]ArticlePreview, error) {
	all, err := c.ListArticles(ctx)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > len(all) {
		n = len(all)
	}
	return slices.Clone(all[:n]), nil
}

// ArticlesByTag returns published articles tagged tag, ignoring case.
func (c *Client) ArticlesByTag(ctx context.Context, tag string) ([]ArticlePreview, error) {
	all, err := c.ListArticles(ctx)
	if err != nil {
		return nil, err
	}
	out := []ArticlePreview{}
	for _, a := range all {
		if a.Metadata.HasTag(tag) {
			out = append(out, a)
		}
	}
	return out, nil
}

// metadata loads metadata regardless of publication state.
func (c *Client) metadata(ctx context.Context, slug string) (Metadata, error) {
	return fetch(ctx, c, articleMetaKey(slug), ArticleTTL, func(ctx context.Context) (Metadata, error) {
		raw, err := c.readFile(ctx, path.Join(slug, metadataFile))
		if err != nil {
			return Metadata{}, err
		}
		return parseMetadata(slug, raw)
	})
}

// GetArticleMetadata returns the metadata of a published article.
// Unpublished articles are reported as not found.
func (c *Client) GetArticleMetadata(ctx context.Context, slug string) (Metadata, error) {
	if err := validSlug(slug); err != nil {
		return Metadata{}, err
	}
	meta, err := c.metadata(ctx, slug)
	if err != nil {
		return Metadata{}, err
	}
	if !meta.Published {
		return Metadata{}, articleNotFound(slug)
	}
	return meta, nil
}

// GetArticleBody returns the raw body of a published article. Unpublished
// articles are reported as not found.
func (c *Client) GetArticleBody(ctx context.Context, slug string) (string, error) {
	if _, err := c.GetArticleMetadata(ctx, slug); err != nil {
		return "", err
	}
	return fetch(ctx, c, articleBodyKey(slug), ArticleTTL, func(ctx context.Context) (string, error) {
		return c.readFile(ctx, path.Join(slug, bodyFile))
	})
}

// GetArticle returns a published article with its body.
func (c *Client) GetArticle(ctx context.Context, slug string) (*Article, error) {
	meta, err := c.GetArticleMetadata(ctx, slug)
	if err != nil {
		return nil, err
	}
	body, err := c.GetArticleBody(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &Article{Slug: slug, Metadata: meta, Body: body}, nil
}

// GetArticleFile returns a file stored in an article's directory, such as
// an included chart definition. The article must be published and relPath
// must stay inside its directory.
func (c *Client) GetArticleFile(ctx context.Context, slug, relPath string) (string, error) {
	if _, err := c.GetArticleMetadata(ctx, slug); err != nil {
		return "", err
	}
	clean, err := markdown.CleanRelPath(relPath)
	if err != nil {
		return "", errors.WithContext(err, "slug", slug)
	}
	return fetch(ctx, c, articleFileKey(slug, clean), ArticleTTL, func(ctx context.Context) (string, error) {
		return c.readFile(ctx, path.Join(slug, clean))
	})
}

// RenderArticle resolves chart includes in a published article and compiles
// it to HTML with image URLs pointing at the content repository.
func (c *Client) RenderArticle(ctx context.Context, slug string) (*RenderedArticle, error) {
	article, err := c.GetArticle(ctx, slug)
	if err != nil {
		return nil, err
	}
	doc, err := cache.GetOrFetch(ctx, c.cache, articleHTMLKey(slug), ArticleTTL, func(ctx context.Context) (*markdown.Document, error) {
		src := markdown.ResolveIncludes(ctx, c, article.Body, slug)
		return c.articles.Compile(src, markdown.AssetBase{
			Host:   c.cfg.RawHost,
			Owner:  c.cfg.Owner,
			Repo:   c.cfg.Repo,
			Branch: c.cfg.Branch,
			Dir:    slug,
		})
	})
	if err != nil {
		return nil, err
	}
	return &RenderedArticle{Article: *article, Document: doc}, nil
}

func (c *Client) readFile(ctx context.Context, filePath string) (string, error) {
	f, err := c.provider.GetFile(ctx, c.cfg.Owner, c.cfg.Repo, filePath, c.cfg.Branch)
	if err != nil {
		return "", err
	}
	return f.Text()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ markdown.FileLoader = (*Client)(nil)
