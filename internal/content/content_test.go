package content

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/folio-mcp/internal/cache"
	gh "github.com/leonardcser/folio-mcp/internal/github"
	"github.com/leonardcser/folio-mcp/internal/github/githubtest"
	"github.com/leonardcser/folio-mcp/internal/logger"
	"github.com/leonardcser/folio-mcp/internal/retry"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const (
	owner = "me"
	repo  = "articles"
)

func newClient(t *testing.T, p *githubtest.Provider) *Client {
	t.Helper()
	c, err := New(Config{
		Owner:  owner,
		Repo:   repo,
		Branch: "main",
		User:   owner,
		Retry:  retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	}, p, cache.New())
	require.NoError(t, err)
	return c
}

func metadataJSON(t *testing.T, title, date string, published bool, tags ...string) string {
	t.Helper()
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(map[string]any{
		"title":     title,
		"summary":   title + " summary",
		"date":      date,
		"tags":      tags,
		"authors":   []map[string]string{{"name": "Ada", "linkedin": "https://linkedin.com/in/ada"}},
		"published": published,
	})
	require.NoError(t, err)
	return string(b)
}

func addArticle(t *testing.T, p *githubtest.Provider, slug, date string, published bool, tags ...string) {
	t.Helper()
	p.AddFile(owner, repo, slug+"/metadata.json", metadataJSON(t, strings.ToUpper(slug), date, published, tags...))
	p.AddFile(owner, repo, slug+"/index.mdx", "# "+slug+"\n")
}

func slugs(previews []ArticlePreview) []string {
	out := make([]string, 0, len(previews))
	for _, p := range previews {
		out = append(out, p.Slug)
	}
	return out
}

func TestNew_Validates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Owner: owner, Repo: repo}, nil, cache.New())
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))

	_, err = New(Config{Owner: owner}, githubtest.New(), cache.New())
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))

	c, err := New(Config{Owner: owner, Repo: repo}, githubtest.New(), cache.New())
	require.NoError(t, err)
	assert.Equal(t, "main", c.cfg.Branch)
}

func TestListArticles_FiltersAndSorts(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addArticle(t, p, "older", "2024-01-15", true)
	addArticle(t, p, "draft", "2024-09-01", false)
	addArticle(t, p, "newer", "2024-06-01", true)
	p.AddFile(owner, repo, "broken/metadata.json", `{"title": "no summary"}`)
	p.AddFile(owner, repo, "README.md", "top-level file")

	c := newClient(t, p)
	got, err := c.ListArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, slugs(got))
	assert.Equal(t, "https://linkedin.com/in/ada", got[0].Metadata.Authors[0].LinkedIn)

	_, err = c.ListArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls("ListDirectory", ""))
	assert.Equal(t, 1, p.Calls("GetFile", "older/metadata.json"))
}

func TestListArticles_MissingRepositoryIsEmpty(t *testing.T) {
	t.Parallel()

	c := newClient(t, githubtest.New())
	got, err := c.ListArticles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestListArticles_DropsFailingItems(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addArticle(t, p, "ok", "2024-01-01", true)
	addArticle(t, p, "flaky", "2024-02-01", true)
	p.Err = func(op, key string) error {
		if op == "GetFile" && key == "flaky/metadata.json" {
			return errors.New(errors.CodeNetwork, "connection reset")
		}
		return nil
	}

	got, err := newClient(t, p).ListArticles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, slugs(got))
	assert.Equal(t, 1, p.Calls("GetFile", "flaky/metadata.json"), "non rate-limit errors are not retried")
}

func TestLatestAndByTag(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addArticle(t, p, "a", "2024-01-01", true, "Go", "infra")
	addArticle(t, p, "b", "2024-02-01", true, "rust")
	addArticle(t, p, "c", "2024-03-01", true, "go")
	c := newClient(t, p)
	ctx := context.Background()

	latest, err := c.LatestArticles(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, slugs(latest))

	all, err := c.LatestArticles(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tagged, err := c.ArticlesByTag(ctx, "GO")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, slugs(tagged))

	none, err := c.ArticlesByTag(ctx, "haskell")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetArticle(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addArticle(t, p, "live", "2024-01-01", true)
	addArticle(t, p, "draft", "2024-01-01", false)
	p.AddFile(owner, repo, "bad/metadata.json", `{"title": "t", "summary": "s", "date": "2024-01-01", "tags": "x", "authors": []}`)
	c := newClient(t, p)
	ctx := context.Background()

	article, err := c.GetArticle(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "# live\n", article.Body)
	assert.Equal(t, "LIVE", article.Metadata.Title)

	tests := []struct {
		name string
		slug string
		code errors.ErrorCode
	}{
		{name: "unpublished", slug: "draft", code: errors.CodeNotFound},
		{name: "missing", slug: "ghost", code: errors.CodeNotFound},
		{name: "invalid metadata", slug: "bad", code: errors.CodeSchemaFailed},
		{name: "traversal", slug: "..", code: errors.CodeInvalidInput},
		{name: "nested", slug: "a/b", code: errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GetArticle(ctx, tt.slug)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))

			_, err = c.GetArticleBody(ctx, tt.slug)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
	assert.Equal(t, 0, p.Calls("GetFile", "draft/index.mdx"))
}

func TestGetArticleFile(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addArticle(t, p, "live", "2024-01-01", true)
	addArticle(t, p, "draft", "2024-01-01", false)
	p.AddFile(owner, repo, "live/charts/a.json", `{"type": "bar", "data": []}`)
	p.AddFile(owner, repo, "draft/charts/a.json", `{"type": "pie", "data": []}`)
	c := newClient(t, p)
	ctx := context.Background()

	got, err := c.GetArticleFile(ctx, "live", "./charts/../charts/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"type": "bar", "data": []}`, got)

	tests := []struct {
		name    string
		slug    string
		relPath string
		code    errors.ErrorCode
	}{
		{name: "unpublished article", slug: "draft", relPath: "charts/a.json", code: errors.CodeNotFound},
		{name: "sibling directory", slug: "live", relPath: "../draft/index.mdx", code: errors.CodeInvalidInput},
		{name: "absolute path", slug: "live", relPath: "/draft/index.mdx", code: errors.CodeInvalidInput},
		{name: "directory itself", slug: "live", relPath: ".", code: errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.GetArticleFile(ctx, tt.slug, tt.relPath)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
	assert.Equal(t, 0, p.Calls("GetFile", "draft/index.mdx"))
	assert.Equal(t, 0, p.Calls("GetFile", "draft/charts/a.json"))
}

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	meta, err := parseMetadata("x", `{"title": "T", "summary": "S", "date": "2024-05-01", "tags": [], "authors": [{"name": "A", "linkedIn": "in/a"}, {"name": "B", "linkedin": "in/b"}], "published": true}`)
	require.NoError(t, err)
	assert.Equal(t, []Author{{Name: "A", LinkedIn: "in/a"}, {Name: "B", LinkedIn: "in/b"}}, meta.Authors)
	assert.True(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Equal(meta.Time()))

	_, err = parseMetadata("x", `{"title": "T", "date": "2024-05-01", "tags": []}`)
	require.Error(t, err)
	assert.Equal(t, errors.CodeSchemaFailed, errors.GetCode(err))
	assert.Contains(t, err.Error(), "missing summary, authors")

	_, err = parseMetadata("x", `not json`)
	assert.Equal(t, errors.CodeSchemaFailed, errors.GetCode(err))
}

func TestGetArticle_DeduplicatesConcurrentCalls(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addArticle(t, p, "hot", "2024-01-01", true)
	c := newClient(t, p)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetArticle(context.Background(), "hot")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, p.Calls("GetFile", "hot/index.mdx"))
	assert.Equal(t, 1, p.Calls("GetFile", "hot/metadata.json"))
}

func TestGetArticle_RetriesRateLimits(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addArticle(t, p, "busy", "2024-01-01", true)
	var failures atomic.Int32
	p.Err = func(op, key string) error {
		if op == "GetFile" && key == "busy/index.mdx" && failures.Add(1) <= 2 {
			return githubtest.RateLimited()
		}
		return nil
	}

	article, err := newClient(t, p).GetArticle(context.Background(), "busy")
	require.NoError(t, err)
	assert.Equal(t, "# busy\n", article.Body)
	assert.Equal(t, 3, p.Calls("GetFile", "busy/index.mdx"))
}

func TestRenderArticle_EndToEnd(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	p.AddFile(owner, repo, "report/metadata.json", metadataJSON(t, "Report", "2024-01-01", true))
	p.AddFile(owner, repo, "report/index.mdx",
		"# Report\n\n![diagram](./img/flow.png)\n\n```chart\n@include charts/sales.json\n```\n\n```chart @include charts/nope.json ```\n")
	p.AddFile(owner, repo, "report/charts/sales.json",
		`{"type": "line", "data": [{"m": "Jan", "v": 1}, {"m": "Feb", "v": 2}], "xAxis": "m", "yAxis": "v"}`)
	c := newClient(t, p)

	got, err := c.RenderArticle(context.Background(), "report")
	require.NoError(t, err)
	assert.Equal(t, "Report", got.Metadata.Title)
	assert.Contains(t, got.Document.HTML, `src="https://raw.githubusercontent.com/me/articles/main/report/img/flow.png"`)
	require.Len(t, got.Document.Charts, 1)
	assert.Equal(t, []string{"v"}, got.Document.Charts[0].YKeys)
	assert.Contains(t, got.Document.HTML, "Chart Error: Failed to load charts/nope.json")

	_, err = c.RenderArticle(context.Background(), "report")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls("GetFile", "report/charts/sales.json"))
}

func addRepo(p *githubtest.Provider, name string, stars int, mutate func(*gh.Repository)) {
	r := &gh.Repository{Owner: owner, Name: name, FullName: owner + "/" + name, Stars: stars, DefaultBranch: "main"}
	if mutate != nil {
		mutate(r)
	}
	p.AddRepository(r)
}

func TestRepositories(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addRepo(p, "small", 1, nil)
	addRepo(p, "big", 50, nil)
	addRepo(p, "mid", 10, nil)
	addRepo(p, "old", 99, func(r *gh.Repository) { r.Archived = true })
	addRepo(p, "copy", 99, func(r *gh.Repository) { r.Fork = true })
	addRepo(p, "secret", 99, func(r *gh.Repository) { r.Private = true })
	c := newClient(t, p)
	ctx := context.Background()

	all, err := c.ListRepositories(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	top, err := c.TopRepositories(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "big", top[0].Name)
	assert.Equal(t, "mid", top[1].Name)

	assert.Equal(t, 1, p.Calls("ListRepositories", owner))

	r, err := c.GetRepository(ctx, owner, "big")
	require.NoError(t, err)
	assert.Equal(t, 50, r.Stars)

	_, err = c.GetRepository(ctx, owner, "ghost")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestGetReadme(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	p.SetReadme(owner, "md", "README.md", "# Tool\n")
	p.SetReadme(owner, "html", "README.html", "<h1>Site</h1><p>Hello <strong>there</strong></p>")
	c := newClient(t, p)
	ctx := context.Background()

	md, err := c.GetReadme(ctx, owner, "md")
	require.NoError(t, err)
	assert.Equal(t, "# Tool\n", md)

	converted, err := c.GetReadme(ctx, owner, "html")
	require.NoError(t, err)
	assert.Contains(t, converted, "# Site")
	assert.Contains(t, converted, "**there**")

	missing, err := c.GetReadme(ctx, owner, "bare")
	require.NoError(t, err)
	assert.Equal(t, NoReadme, missing)
}

func TestRenderReadme_UsesDefaultBranch(t *testing.T) {
	t.Parallel()

	p := githubtest.New()
	addRepo(p, "tool", 3, func(r *gh.Repository) { r.DefaultBranch = "trunk" })
	p.SetReadme(owner, "tool", "README.md", "<img src=\"docs/logo.png\">\n\n![shot](./docs/shot.png)\n")
	c := newClient(t, p)

	doc, err := c.RenderReadme(context.Background(), owner, "tool")
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, `src="https://raw.githubusercontent.com/me/tool/trunk/docs/logo.png"`)
	assert.Contains(t, doc.HTML, `src="https://raw.githubusercontent.com/me/tool/trunk/docs/shot.png"`)
}
