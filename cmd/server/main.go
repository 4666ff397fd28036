package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/folio-mcp/internal/cache"
	"github.com/leonardcser/folio-mcp/internal/config"
	"github.com/leonardcser/folio-mcp/internal/content"
	"github.com/leonardcser/folio-mcp/internal/control"
	"github.com/leonardcser/folio-mcp/internal/github/sdk"
	"github.com/leonardcser/folio-mcp/internal/httpapi"
	"github.com/leonardcser/folio-mcp/internal/logger"
	"github.com/leonardcser/folio-mcp/internal/revalidate"
	tools "github.com/leonardcser/folio-mcp/internal/tools"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	if err := run(); err != nil {
		logger.Errorf("server error: %v", err)
		fmt.Fprintln(os.Stderr, err)
		logger.Close()
		os.Exit(1)
	}
}

func run() error {
	logger.Infof("Starting Folio MCP server")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	providerOpts := []sdk.Option{sdk.WithToken(cfg.GitHubToken)}
	if cfg.GitHubAPIURL != "" {
		providerOpts = append(providerOpts, sdk.WithBaseURL(cfg.GitHubAPIURL))
	}
	provider, err := sdk.NewSDKProvider(providerOpts...)
	if err != nil {
		return err
	}

	c := cache.New(cache.WithDefaultTTL(cfg.CacheTTL))
	client, err := content.New(cfg.Content(), provider, c)
	if err != nil {
		return err
	}
	rv := revalidate.New(c, cfg.RevalidationToken, cfg.GitHubUsername)
	logger.Infof("Reading articles from %s/%s@%s", cfg.ArticlesOwner, cfg.ArticlesRepo, cfg.ArticlesBranch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if l, err := control.Listen(cfg.ControlSocket); err != nil {
		logger.Warnf("Control socket disabled: %v", err)
	} else {
		defer os.Remove(cfg.ControlSocket)
		go func() {
			if err := control.NewServer(rv, c.Keys).Serve(ctx, l); err != nil {
				logger.Errorf("control server error: %v", err)
			}
		}()
		logger.Infof("Control socket listening at %s", cfg.ControlSocket)
	}

	if cfg.HTTPAddr != "" {
		api := httpapi.NewServer(client, rv)
		go func() {
			if err := api.Run(ctx, cfg.HTTPAddr); err != nil {
				logger.Errorf("http server error: %v", err)
			}
		}()
	}

	s := server.NewMCPServer(
		"Folio MCP",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	registerTools(s, client, rv)

	logger.Infof("Starting MCP server on stdio")
	return server.ServeStdio(s)
}

func registerTools(s *server.MCPServer, client *content.Client, rv *revalidate.Handler) {
	s.AddTool(mcp.NewTool("articles-list",
		mcp.WithDescription(multiline(
			"Lists published articles, newest first",
			"\nUsage notes:",
			"- Filter with tag (case-insensitive) and cap the result with limit",
			"- Results are cached for 30 minutes; use the revalidate tool after publishing",
		)),
		mcp.WithString("tag", mcp.Description("Only list articles carrying this tag")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of articles to return")),
	), tools.ArticlesListHandler(client))

	s.AddTool(mcp.NewTool("article-get",
		mcp.WithDescription(multiline(
			"Fetches a published article",
			"\nFunctionality:",
			"- markdown format returns the source with chart includes expanded",
			"- html format returns the rendered article with images pointing at the content repository",
		)),
		mcp.WithString("slug", mcp.Required(), mcp.Description("The article directory name")),
		mcp.WithString("format", mcp.Enum("markdown", "html"), mcp.Description("Output format, markdown by default")),
	), tools.ArticleGetHandler(client))

	s.AddTool(mcp.NewTool("repos-list",
		mcp.WithDescription("Lists the owner's public repositories that are not archived or forks"),
		mcp.WithNumber("top", mcp.Description("Only return this many repositories, most starred first")),
	), tools.ReposListHandler(client))

	s.AddTool(mcp.NewTool("repo-get",
		mcp.WithDescription("Fetches repository metadata"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Repository name")),
		mcp.WithString("owner", mcp.Description("Repository owner, the configured user by default")),
	), tools.RepoGetHandler(client))

	s.AddTool(mcp.NewTool("readme-get",
		mcp.WithDescription("Fetches a repository README as markdown or rendered HTML"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Repository name")),
		mcp.WithString("owner", mcp.Description("Repository owner, the configured user by default")),
		mcp.WithString("format", mcp.Enum("markdown", "html"), mcp.Description("Output format, markdown by default")),
	), tools.ReadmeGetHandler(client))

	s.AddTool(mcp.NewTool("revalidate",
		mcp.WithDescription(multiline(
			"Evicts cached content behind a site path",
			"\nPaths:",
			"- / evicts everything",
			"- /articles or /articles/{slug}",
			"- /portfolio or /portfolio/{repo}",
		)),
		mcp.WithString("path", mcp.Required(), mcp.Description("Site path to revalidate")),
		mcp.WithString("secret", mcp.Description("Revalidation token, when one is configured")),
	), tools.RevalidateHandler(rv))

	logger.Infof("Registered MCP tools")
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }
